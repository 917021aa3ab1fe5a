package tracepoint

// A CallKey identifies one kind of call within a call tree. It is either a
// plain reference to a tracepoint, or a tracepoint further partitioned by a
// key derived from call arguments. Two calls with the same tracepoint but
// different argument keys are distinct siblings in a call tree.
//
// CallKey is a value type and is comparable, so it can key maps directly.
type CallKey struct {
	Tracepoint *Tracepoint
	ArgKey     string
	HasArg     bool
}

// SimpleCall returns the key for a call without an argument key.
func SimpleCall(tp *Tracepoint) CallKey {
	return CallKey{Tracepoint: tp}
}

// CallWithArg returns the key for a call partitioned by an argument key. An
// empty argument key is still distinct from no argument key.
func CallWithArg(tp *Tracepoint, argKey string) CallKey {
	return CallKey{Tracepoint: tp, ArgKey: argKey, HasArg: true}
}

func (k CallKey) String() string {
	if k.HasArg {
		return k.Tracepoint.DisplayName() + ": " + k.ArgKey
	}

	return k.Tracepoint.DisplayName()
}
