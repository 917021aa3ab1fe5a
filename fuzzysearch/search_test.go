package fuzzysearch

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Search", func() {
	It("should rank matches by descending score", func() {
		candidates := []string{"nospl", "DeepSplash", "zebra", "Spline",
			"s.p.l"}

		results := Search(candidates, "spl", nil)

		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.Candidate
		}
		Expect(names).To(Equal(
			[]string{"Spline", "s.p.l", "DeepSplash", "nospl"}))
	})

	It("should keep input order between equal scores", func() {
		results := Search([]string{"Splint", "Spline"}, "spl", nil)

		Expect(results).To(HaveLen(2))
		Expect(results[0].Score).To(Equal(results[1].Score))
		Expect(results[0].Candidate).To(Equal("Splint"))
		Expect(results[1].Candidate).To(Equal("Spline"))
	})

	It("should return every candidate for an empty pattern", func() {
		candidates := []string{"one", "two", "three"}

		results := Search(candidates, "", nil)

		Expect(results).To(HaveLen(3))
		Expect(results[0].Candidate).To(Equal("one"))
		Expect(results[1].Candidate).To(Equal("two"))
		Expect(results[2].Candidate).To(Equal("three"))
	})

	It("should return nothing for an empty candidate set", func() {
		Expect(Search(nil, "abc", nil)).To(BeEmpty())
	})

	It("should abandon the search when cancelled", func() {
		candidates := make([]string, 200)
		for i := range candidates {
			candidates[i] = fmt.Sprintf("candidate%03d", i)
		}

		checks := 0
		cancelled := func() bool {
			checks++
			return checks == 2
		}

		results := Search(candidates, "zz", cancelled)

		Expect(results).To(BeNil())
		Expect(checks).To(Equal(2))
	})
})
