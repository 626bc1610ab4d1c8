package qbf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/vars"
)

func newCegar(t *testing.T) (*Cegar, *vars.Registry) {
	t.Helper()
	reg := vars.NewRegistry()
	return NewCegar(reg, sat.Gini(false)), reg
}

func TestCegarPurelyExistential(t *testing.T) {
	c, reg := newCegar(t)
	x := reg.Create(vars.PresState, "x")
	y := reg.Create(vars.PresState, "y")

	m := cnf.New()
	m.AddClause(x)
	m.AddClause(-x, y)

	model, sat, err := c.IsSatModel(Prefix{E(vars.PresState)}, m)
	require.NoError(t, err)
	require.True(t, sat)
	assert.Equal(t, []int{x, y}, model)

	m.AddClause(-y)
	_, sat, err = c.IsSatModel(Prefix{E(vars.PresState)}, m)
	require.NoError(t, err)
	assert.False(t, sat)
}

func TestCegarForallExists(t *testing.T) {
	c, reg := newCegar(t)
	x := reg.Create(vars.Input, "x")
	y := reg.Create(vars.Ctrl, "y")

	// ∀x ∃y. (x ∨ y) ∧ (¬x ∨ ¬y): y := ¬x.
	m := cnf.New()
	m.AddClause(x, y)
	m.AddClause(-x, -y)

	sat, err := c.IsSat(Prefix{A(vars.Input), E(vars.Ctrl)}, m)
	require.NoError(t, err)
	assert.True(t, sat)

	// ∃y ∀x of the same matrix: no constant y works.
	sat, err = c.IsSat(Prefix{E(vars.Ctrl), A(vars.Input)}, m)
	require.NoError(t, err)
	assert.False(t, sat)
}

func TestCegarExistsForallExists(t *testing.T) {
	c, reg := newCegar(t)
	p := reg.Create(vars.TemplParam, "p")
	x := reg.Create(vars.Input, "x")
	z := reg.Create(vars.Ctrl, "z")

	// ∃p ∀x ∃z. p ∧ (z ∨ x) ∧ (¬z ∨ ¬x): satisfiable with p true.
	m := cnf.New()
	m.AddClause(p)
	m.AddClause(z, x)
	m.AddClause(-z, -x)

	prefix := Prefix{E(vars.TemplParam), A(vars.Input), E(vars.Ctrl)}
	model, sat, err := c.IsSatModel(prefix, m)
	require.NoError(t, err)
	require.True(t, sat)
	assert.Equal(t, []int{p}, model)

	// ∃p ∀x ∃z. (p ⇔ x) is unsatisfiable: p cannot track x.
	m2 := cnf.New()
	m2.AddClause(p, -x)
	m2.AddClause(-p, x)
	_, sat, err = c.IsSatModel(prefix, m2)
	require.NoError(t, err)
	assert.False(t, sat)
}

func TestCegarLeadingForallUnsat(t *testing.T) {
	c, reg := newCegar(t)
	x := reg.Create(vars.Input, "x")

	m := cnf.New()
	m.AddClause(x)

	sat, err := c.IsSat(Prefix{A(vars.Input)}, m)
	require.NoError(t, err)
	assert.False(t, sat)
}

func TestCegarReclaimsAuxiliaries(t *testing.T) {
	c, reg := newCegar(t)
	x := reg.Create(vars.Input, "x")
	y := reg.Create(vars.Ctrl, "y")
	m := cnf.New()
	m.AddClause(x, y)
	m.AddClause(-x, -y)

	before := reg.MaxVar()
	_, err := c.IsSat(Prefix{A(vars.Input), E(vars.Ctrl)}, m)
	require.NoError(t, err)
	assert.Equal(t, before, reg.MaxVar())
}

func TestCegarDeepPrefix(t *testing.T) {
	c, reg := newCegar(t)
	a := reg.Create(vars.TemplParam, "a")
	x := reg.Create(vars.Input, "x")
	b := reg.Create(vars.Ctrl, "b")
	w := reg.Create(vars.PresState, "w")
	z := reg.Create(vars.Tmp, "z")

	// ∃a ∀x ∃b ∀w ∃z. a ∧ (b ∨ x) ∧ (¬b ∨ ¬x) ∧ (z ∨ w) ∧ (¬z ∨ ¬w).
	// z := ¬w and b := ¬x always work, so any a := ⊤ witnesses it.
	m := cnf.New()
	m.AddClause(a)
	m.AddClause(b, x)
	m.AddClause(-b, -x)
	m.AddClause(z, w)
	m.AddClause(-z, -w)

	prefix := Prefix{
		E(vars.TemplParam),
		A(vars.Input),
		E(vars.Ctrl),
		A(vars.PresState),
		E(vars.Tmp),
	}
	model, sat, err := c.IsSatModel(prefix, m)
	require.NoError(t, err)
	require.True(t, sat)
	assert.Equal(t, []int{a}, model)
}
