// Package vars manages the propositional variables shared by the CNF
// containers, the solvers, and the synthesis engines. Every variable is a
// positive integer with a kind tag; literals are signed variable ids.
package vars

import "fmt"

// Kind classifies a variable by its role in the transition system.
type Kind int

const (
	// Input marks an uncontrollable input, chosen by the environment.
	Input Kind = iota
	// Ctrl marks a controllable input, chosen by the system.
	Ctrl
	// PresState marks a latch in the current step. PresState[0] is the
	// error bit.
	PresState
	// NextState marks the successor copy of a latch. NextState[i] is
	// paired with PresState[i].
	NextState
	// Tmp marks an auxiliary variable introduced by Tseitin encodings.
	Tmp
	// TemplParam marks a template parameter of the template-based
	// synthesis engine.
	TemplParam
)

var kindNames = map[Kind]string{
	Input:      "input",
	Ctrl:       "ctrl",
	PresState:  "pres_state",
	NextState:  "next_state",
	Tmp:        "tmp",
	TemplParam: "templ_param",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type varInfo struct {
	kind Kind
	name string
}

type mark struct {
	maxVar  int
	perKind map[Kind]int
}

// Registry allocates variable ids and remembers their kinds. It replaces the
// process-wide manager of older tools: a single Registry is created per run
// and passed explicitly to everything that needs to name variables.
//
// Registries are not safe for concurrent use.
type Registry struct {
	infos  []varInfo // infos[0] is unused; ids are 1-based
	byKind map[Kind][]int
	marks  []mark
}

// NewRegistry returns an empty registry. The first variable created gets
// id 1.
func NewRegistry() *Registry {
	return &Registry{
		infos:  make([]varInfo, 1),
		byKind: make(map[Kind][]int),
	}
}

// Create allocates a fresh variable of the given kind.
func (r *Registry) Create(kind Kind, name string) int {
	id := len(r.infos)
	r.infos = append(r.infos, varInfo{kind: kind, name: name})
	r.byKind[kind] = append(r.byKind[kind], id)
	return id
}

// FreshTmp allocates an unnamed auxiliary variable.
func (r *Registry) FreshTmp() int {
	return r.Create(Tmp, "")
}

// FreshTemplParam allocates an unnamed template parameter.
func (r *Registry) FreshTemplParam() int {
	return r.Create(TemplParam, "")
}

// OfKind returns the variables of a kind in creation order. The returned
// slice is owned by the registry; callers must copy it before modifying it.
func (r *Registry) OfKind(k Kind) []int {
	return r.byKind[k]
}

// MaxVar returns the highest variable id allocated so far.
func (r *Registry) MaxVar() int {
	return len(r.infos) - 1
}

// KindOf returns the kind of v. v must have been allocated by this registry.
func (r *Registry) KindOf(v int) Kind {
	if v <= 0 || v >= len(r.infos) {
		panic(fmt.Sprintf("vars: unknown variable %d", v))
	}
	return r.infos[v].kind
}

// NameOf returns the name v was created with, or "".
func (r *Registry) NameOf(v int) string {
	if v <= 0 || v >= len(r.infos) {
		return ""
	}
	return r.infos[v].name
}

// Push records the current allocation state. A later ResetToLastPush rolls
// back to it. Pushes nest; ResetToLastPush restores the most recent mark
// without consuming it, so a loop can push once and reset every iteration.
func (r *Registry) Push() {
	m := mark{maxVar: r.MaxVar(), perKind: make(map[Kind]int, len(r.byKind))}
	for k, ids := range r.byKind {
		m.perKind[k] = len(ids)
	}
	r.marks = append(r.marks, m)
}

// ResetToLastPush discards every variable allocated since the most recent
// Push. Reclaimed ids will be handed out again; any CNF still referencing
// them is invalid. Panics if Push was never called.
func (r *Registry) ResetToLastPush() {
	if len(r.marks) == 0 {
		panic("vars: ResetToLastPush without Push")
	}
	m := r.marks[len(r.marks)-1]
	r.infos = r.infos[:m.maxVar+1]
	for k := range r.byKind {
		n, ok := m.perKind[k]
		if !ok {
			n = 0
		}
		r.byKind[k] = r.byKind[k][:n]
	}
}

// Pop drops the most recent mark without rolling anything back.
func (r *Registry) Pop() {
	if len(r.marks) == 0 {
		panic("vars: Pop without Push")
	}
	r.marks = r.marks[:len(r.marks)-1]
}

// PresError returns the error bit, PresState[0].
func (r *Registry) PresError() int {
	ps := r.byKind[PresState]
	if len(ps) == 0 {
		panic("vars: no present-state variables")
	}
	return ps[0]
}

// NextError returns the successor copy of the error bit, NextState[0].
func (r *Registry) NextError() int {
	ns := r.byKind[NextState]
	if len(ns) == 0 {
		panic("vars: no next-state variables")
	}
	return ns[0]
}

// pairIndex returns the position of v within its kind slice, or -1.
func (r *Registry) pairIndex(v int, k Kind) int {
	for i, id := range r.byKind[k] {
		if id == v {
			return i
		}
	}
	return -1
}

// NextOf returns the next-state counterpart of a present-state variable.
func (r *Registry) NextOf(pres int) int {
	i := r.pairIndex(pres, PresState)
	if i < 0 {
		panic(fmt.Sprintf("vars: %d is not a present-state variable", pres))
	}
	return r.byKind[NextState][i]
}

// PresOf returns the present-state counterpart of a next-state variable.
func (r *Registry) PresOf(next int) int {
	i := r.pairIndex(next, NextState)
	if i < 0 {
		panic(fmt.Sprintf("vars: %d is not a next-state variable", next))
	}
	return r.byKind[PresState][i]
}

// SwapPresentNext exchanges present-state and next-state variables in the
// given literals, preserving polarity. The slice is modified in place.
// Applying it twice restores the original literals.
func (r *Registry) SwapPresentNext(lits []int) {
	ps := r.byKind[PresState]
	ns := r.byKind[NextState]
	if len(ps) != len(ns) {
		panic("vars: present/next state counts differ")
	}
	swap := make(map[int]int, 2*len(ps))
	for i := range ps {
		swap[ps[i]] = ns[i]
		swap[ns[i]] = ps[i]
	}
	for i, lit := range lits {
		v := lit
		if v < 0 {
			v = -v
		}
		if n, ok := swap[v]; ok {
			if lit < 0 {
				lits[i] = -n
			} else {
				lits[i] = n
			}
		}
	}
}

// Extract returns the sub-cube of model whose variables have the given kind,
// preserving order and polarity.
func (r *Registry) Extract(model []int, k Kind) []int {
	var out []int
	for _, lit := range model {
		v := lit
		if v < 0 {
			v = -v
		}
		if v < len(r.infos) && r.infos[v].kind == k {
			out = append(out, lit)
		}
	}
	return out
}

// ExtractPresIn returns the present-state and input literals of model.
func (r *Registry) ExtractPresIn(model []int) []int {
	var out []int
	for _, lit := range model {
		v := lit
		if v < 0 {
			v = -v
		}
		if v < len(r.infos) {
			if k := r.infos[v].kind; k == PresState || k == Input {
				out = append(out, lit)
			}
		}
	}
	return out
}

// ExtractNextAsPresent returns the next-state literals of model, renamed to
// their present-state counterparts.
func (r *Registry) ExtractNextAsPresent(model []int) []int {
	next := r.Extract(model, NextState)
	r.SwapPresentNext(next)
	return next
}

// ContainsInit reports whether the state portion of the cube is consistent
// with the all-zero initial state, i.e. no present-state variable occurs
// positively.
func (r *Registry) ContainsInit(cube []int) bool {
	for _, lit := range cube {
		if lit > 0 && lit < len(r.infos) && r.infos[lit].kind == PresState {
			return false
		}
	}
	return true
}
