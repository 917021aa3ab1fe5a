package fuzzysearch

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Match", func() {
	It("should match a segment prefix and report its positions", func() {
		res, ok := Match("java.lang.String", "str")

		Expect(ok).To(BeTrue())
		Expect(res.Score).To(Equal(13))
		Expect(res.Positions).To(Equal([]int{10, 11, 12}))
	})

	It("should not match characters the candidate lacks", func() {
		_, ok := Match("java.lang.String", "xyz123")

		Expect(ok).To(BeFalse())
	})

	It("should ignore case", func() {
		res, ok := Match("string", "Str")

		Expect(ok).To(BeTrue())
		Expect(res.Score).To(Equal(13))
		Expect(res.Positions).To(Equal([]int{0, 1, 2}))
	})

	It("should score a prefix match above a scattered match", func() {
		prefix, ok := Match("String", "Str")
		Expect(ok).To(BeTrue())

		scattered, ok := Match("sxtxr", "Str")
		Expect(ok).To(BeTrue())

		Expect(prefix.Score).To(BeNumerically(">", scattered.Score))
		Expect(scattered.Positions).To(Equal([]int{0, 2, 4}))
	})

	It("should reward a camel-case boundary", func() {
		camel, ok := Match("getString", "str")
		Expect(ok).To(BeTrue())
		Expect(camel.Score).To(Equal(5))

		plain, ok := Match("xxstrxx", "str")
		Expect(ok).To(BeTrue())
		Expect(plain.Score).To(Equal(3))
	})

	It("should reward matching a delimiter character itself", func() {
		res, ok := Match("lang.String", "g.s")

		Expect(ok).To(BeTrue())
		Expect(res.Score).To(Equal(7))
		Expect(res.Positions).To(Equal([]int{3, 4, 5}))
	})

	It("should match everything with a neutral score on an empty pattern",
		func() {
			res, ok := Match("anything", "")

			Expect(ok).To(BeTrue())
			Expect(res.Score).To(Equal(0))
			Expect(res.Positions).To(BeEmpty())
		})

	It("should not match an empty candidate", func() {
		_, ok := Match("", "a")

		Expect(ok).To(BeFalse())
	})

	Context("with a short pattern", func() {
		It("should pick the better of the first and last anchor", func() {
			res, ok := Match("Apple.pie", "p")

			Expect(ok).To(BeTrue())
			Expect(res.Score).To(Equal(11))
			Expect(res.Positions).To(Equal([]int{6}))
		})

		It("should keep the first anchor on a tie", func() {
			res, ok := Match("banana", "a")

			Expect(ok).To(BeTrue())
			Expect(res.Score).To(Equal(1))
			Expect(res.Positions).To(Equal([]int{1}))
		})

		It("should fall back to the last anchor when the first one breaks",
			func() {
				res, ok := Match("Apple.pie", "pi")

				Expect(ok).To(BeTrue())
				Expect(res.Score).To(Equal(12))
				Expect(res.Positions).To(Equal([]int{6, 7}))
			})

		It("should extend an anchor across a segment boundary", func() {
			res, ok := Match("io.Reader", "re")

			Expect(ok).To(BeTrue())
			Expect(res.Score).To(Equal(12))
			Expect(res.Positions).To(Equal([]int{3, 4}))
		})

		It("should require short patterns to match contiguously", func() {
			_, ok := Match("soviet", "st")

			Expect(ok).To(BeFalse())
		})
	})
})
