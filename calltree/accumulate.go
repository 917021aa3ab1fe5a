package calltree

// Accumulate merges the from tree into the into tree. Matching nodes, found
// by walking both trees in lockstep and pairing children by call key, sum
// their call counts and wall times and keep the larger maximum. Subtrees
// that only exist in from are deep-copied into into. The from tree is not
// modified.
//
// Accumulating an empty tree is a no-op, and accumulating a tree into an
// empty one copies it, so repeated accumulation is how per-thread trees
// roll up into a process-wide total.
func Accumulate(into, from *Node) {
	into.CallCount += from.CallCount
	into.WallTime += from.WallTime

	if from.MaxWallTime > into.MaxWallTime {
		into.MaxWallTime = from.MaxWallTime
	}

	for _, fromChild := range from.order {
		Accumulate(into.getOrCreateChild(fromChild.Key), fromChild)
	}
}
