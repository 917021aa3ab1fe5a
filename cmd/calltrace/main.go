// The calltrace command runs a self-profiled demo workload and serves its
// live call statistics.
package main

func main() {
	Execute()
}
