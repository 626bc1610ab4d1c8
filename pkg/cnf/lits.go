package cnf

// NegateLits flips the polarity of every literal in place.
func NegateLits(lits []int) {
	for i, lit := range lits {
		lits[i] = -lit
	}
}

// Negated returns a polarity-flipped copy of the literals.
func Negated(lits []int) []int {
	out := append([]int(nil), lits...)
	NegateLits(out)
	return out
}

// IsSubset reports whether every literal of a occurs in b.
func IsSubset(a, b []int) bool {
	if len(a) > len(b) {
		return false
	}
	inB := make(map[int]bool, len(b))
	for _, lit := range b {
		inB[lit] = true
	}
	for _, lit := range a {
		if !inB[lit] {
			return false
		}
	}
	return true
}

// Contains reports whether lit occurs in lits.
func Contains(lits []int, lit int) bool {
	for _, l := range lits {
		if l == lit {
			return true
		}
	}
	return false
}
