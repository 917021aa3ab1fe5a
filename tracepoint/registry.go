package tracepoint

import (
	"sort"
	"strings"
	"sync"

	"github.com/sarchlab/calltrace/container"
)

// Registry owns tracepoint creation and lookup. It maps a two-level
// identity, container name then member name, to per-signature tracepoint
// ids, and tracks which members are enabled for tracing.
//
// A single Registry instance is created at startup and passed to everything
// that needs it; there is no process-wide registry state.
//
// All map mutations and multi-step reads serialize on one mutex. The id
// table underneath answers ByID without taking that mutex, so resolving an
// id on the per-event hot path never blocks.
type Registry struct {
	mu         sync.Mutex
	table      *container.AppendOnlyList[*Tracepoint]
	containers map[string]*containerEntry
}

type containerEntry struct {
	members map[string]*memberEntry
}

type memberEntry struct {
	// tracedByName marks the member as enabled by exact name, so
	// signatures discovered later inherit the enablement at lookup time.
	tracedByName bool
	flags        Flags
	bySignature  map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		table:      container.NewAppendOnlyList[*Tracepoint](),
		containers: make(map[string]*containerEntry),
	}
}

// TraceMembers enables tracing, with the given flags, for every member of
// the container with exactly the given name. Signatures already known for
// that member are re-activated immediately; signatures discovered later
// inherit the enablement when they are first looked up, so overloads do not
// need to be registered up front.
func (r *Registry) TraceMembers(containerName, memberName string, flags Flags) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member := r.memberLocked(containerName, memberName)
	member.tracedByName = true
	member.flags = flags

	for _, id := range member.bySignature {
		r.mustGetLocked(id).SetFlags(flags)
	}
}

// UntraceMembers disables tracing for every member of the container with
// exactly the given name. Tracepoints are disabled, not removed: their ids
// stay assigned and future entry/exit events simply record nothing.
func (r *Registry) UntraceMembers(containerName, memberName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	con, ok := r.containers[containerName]
	if !ok {
		return
	}

	member, ok := con.members[memberName]
	if !ok {
		return
	}

	member.tracedByName = false
	member.flags = 0

	for _, id := range member.bySignature {
		r.mustGetLocked(id).SetFlags(0)
	}
}

// TraceSpecific ensures exactly one tracepoint exists for the precise
// signature, creating one with a derived display name and description if
// absent, enables it with the given flags, and returns its id.
func (r *Registry) TraceSpecific(
	containerName, memberName, signature string,
	flags Flags,
) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	member := r.memberLocked(containerName, memberName)

	id, ok := member.bySignature[signature]
	if !ok {
		id = r.registerLocked(containerName, memberName, signature, member)
	}

	r.mustGetLocked(id).SetFlags(flags)

	return id
}

// LookupID answers the instrumentation-time question "should this
// occurrence be recorded, and under what id". It returns the existing id if
// the signature is already known. If the signature is unknown but its
// member is enabled by name, the signature is lazily registered, inherits
// the member's flags, and the new id is returned. Otherwise the second
// return value is false: the occurrence is not traced. Absence is the
// common case and is not an error.
func (r *Registry) LookupID(
	containerName, memberName, signature string,
) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	con, ok := r.containers[containerName]
	if !ok {
		return 0, false
	}

	member, ok := con.members[memberName]
	if !ok {
		return 0, false
	}

	if id, ok := member.bySignature[signature]; ok {
		return id, true
	}

	if !member.tracedByName {
		return 0, false
	}

	id := r.registerLocked(containerName, memberName, signature, member)
	r.mustGetLocked(id).SetFlags(member.flags)

	return id, true
}

// RemoveAllTracing atomically clears all registry entries, disables every
// affected tracepoint, and returns the sorted names of the affected
// containers so the caller knows what to de-instrument. Assigned ids
// remain resolvable through ByID for the lifetime of the registry.
func (r *Registry) RemoveAllTracing() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := make([]string, 0, len(r.containers))
	for name, con := range r.containers {
		affected = append(affected, name)

		for _, member := range con.members {
			for _, id := range member.bySignature {
				r.mustGetLocked(id).SetFlags(0)
			}
		}
	}

	sort.Strings(affected)
	r.containers = make(map[string]*containerEntry)

	return affected
}

// ByID resolves a tracepoint id without taking the registry lock. It
// returns nil for ids that were never assigned.
func (r *Registry) ByID(id int) *Tracepoint {
	tp, ok := r.table.Get(id)
	if !ok {
		return nil
	}

	return tp
}

// NumTracepoints returns how many tracepoints have been registered.
func (r *Registry) NumTracepoints() int {
	return r.table.Len()
}

// Tracepoints returns a snapshot of all registered tracepoints in id order.
func (r *Registry) Tracepoints() []*Tracepoint {
	n := r.table.Len()

	tps := make([]*Tracepoint, 0, n)
	for id := 0; id < n; id++ {
		tp, _ := r.table.Get(id)
		tps = append(tps, tp)
	}

	return tps
}

// DisplayNames returns the display names of all registered tracepoints in
// id order, for use as a search candidate set.
func (r *Registry) DisplayNames() []string {
	tps := r.Tracepoints()

	names := make([]string, len(tps))
	for i, tp := range tps {
		names[i] = tp.DisplayName()
	}

	return names
}

func (r *Registry) memberLocked(
	containerName, memberName string,
) *memberEntry {
	con, ok := r.containers[containerName]
	if !ok {
		con = &containerEntry{members: make(map[string]*memberEntry)}
		r.containers[containerName] = con
	}

	member, ok := con.members[memberName]
	if !ok {
		member = &memberEntry{bySignature: make(map[string]int)}
		con.members[memberName] = member
	}

	return member
}

func (r *Registry) registerLocked(
	containerName, memberName, signature string,
	member *memberEntry,
) int {
	tp := New(
		r.table.Len(),
		simpleName(containerName)+"."+memberName,
		containerName+"#"+memberName+signature,
	)

	id := r.table.Append(tp)
	member.bySignature[signature] = id

	return id
}

func (r *Registry) mustGetLocked(id int) *Tracepoint {
	tp, ok := r.table.Get(id)
	if !ok {
		panic("registry refers to an id that was never assigned")
	}

	return tp
}

// simpleName shortens a container name to its last path segment, e.g.
// "java.lang.String" to "String" and "net/http.Server" to "Server".
func simpleName(containerName string) string {
	idx := strings.LastIndexAny(containerName, "./$")
	if idx < 0 || idx == len(containerName)-1 {
		return containerName
	}

	return containerName[idx+1:]
}
