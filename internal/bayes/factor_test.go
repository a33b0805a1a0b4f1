package bayes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFactor(t *testing.T, vars []VarID, card []int, values []float64) *Factor {
	t.Helper()
	f, err := NewFactor(vars, card, values)
	require.NoError(t, err)
	return f
}

// assignments lists every assignment over vars with the given cardinalities.
func assignments(vars []VarID, card []int) []map[VarID]int {
	var out []map[VarID]int
	states := make([]int, len(card))
	for {
		a := make(map[VarID]int, len(vars))
		for i, v := range vars {
			a[v] = states[i]
		}
		out = append(out, a)
		i := len(states) - 1
		for ; i >= 0; i-- {
			states[i]++
			if states[i] < card[i] {
				break
			}
			states[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

func TestNewFactor_Validation(t *testing.T) {
	_, err := NewFactor([]VarID{0, 1}, []int{2}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrCPDShape)

	_, err = NewFactor([]VarID{0, 0}, []int{2, 2}, make([]float64, 4))
	assert.ErrorIs(t, err, ErrCPDShape)

	_, err = NewFactor([]VarID{0}, []int{2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrCPDShape)

	f, err := NewFactor(nil, nil, []float64{3})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
}

func TestFactor_RowMajorLayout(t *testing.T) {
	f := mustFactor(t, []VarID{0, 1}, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})

	v, err := f.Value(map[VarID]int{0: 1, 1: 0})
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	v, err = f.Value(map[VarID]int{0: 0, 1: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = f.Value(map[VarID]int{0: 0})
	assert.ErrorIs(t, err, ErrScope)

	_, err = f.Value(map[VarID]int{0: 0, 1: 3})
	assert.ErrorIs(t, err, ErrStateRange)
}

func TestProduct(t *testing.T) {
	a := mustFactor(t, []VarID{0, 1}, []int{2, 2}, []float64{0.1, 0.2, 0.3, 0.4})
	b := mustFactor(t, []VarID{1, 2}, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})

	p := Product(a, b)
	assert.Equal(t, []VarID{0, 1, 2}, p.Scope())
	assert.Equal(t, 12, p.Len())

	for _, asg := range assignments([]VarID{0, 1, 2}, []int{2, 2, 3}) {
		va, _ := a.Value(asg)
		vb, _ := b.Value(asg)
		got, err := p.Value(asg)
		require.NoError(t, err)
		assert.InDelta(t, va*vb, got, 1e-12)
	}
}

func TestProduct_CommutativeAndAssociative(t *testing.T) {
	a := mustFactor(t, []VarID{0, 1}, []int{2, 3}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	b := mustFactor(t, []VarID{2, 0}, []int{2, 2}, []float64{0.7, 0.3, 0.2, 0.8})
	c := mustFactor(t, []VarID{1}, []int{3}, []float64{2, 3, 5})

	ab := Product(a, b)
	ba := Product(b, a)
	left := Product(Product(a, b), c)
	right := Product(a, Product(b, c))

	for _, asg := range assignments([]VarID{0, 1, 2}, []int{2, 3, 2}) {
		x, _ := ab.Value(asg)
		y, _ := ba.Value(asg)
		assert.InDelta(t, x, y, 1e-12)

		l, _ := left.Value(asg)
		r, _ := right.Value(asg)
		assert.InDelta(t, l, r, 1e-12)
	}
}

func TestProduct_EmptyScope(t *testing.T) {
	scalar := mustFactor(t, nil, nil, []float64{2})
	f := mustFactor(t, []VarID{3}, []int{2}, []float64{0.25, 0.75})

	p := Product(scalar, f)
	assert.Equal(t, []VarID{3}, p.Scope())
	assert.Equal(t, []float64{0.5, 1.5}, p.Values())
}

func TestMarginalize(t *testing.T) {
	f := mustFactor(t, []VarID{0, 1}, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})

	m, err := Marginalize(f, 0)
	require.NoError(t, err)
	assert.Equal(t, []VarID{1}, m.Scope())
	assert.Equal(t, []float64{5, 7, 9}, m.Values())

	m, err = Marginalize(f, 1)
	require.NoError(t, err)
	assert.Equal(t, []VarID{0}, m.Scope())
	assert.Equal(t, []float64{6, 15}, m.Values())

	_, err = Marginalize(f, 7)
	assert.ErrorIs(t, err, ErrScope)
}

func TestMaxMarginalize(t *testing.T) {
	f := mustFactor(t, []VarID{0, 1}, []int{2, 3}, []float64{1, 9, 3, 4, 5, 6})

	m, err := MaxMarginalize(f, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 6}, m.Values())

	_, err = MaxMarginalize(f, 2)
	assert.ErrorIs(t, err, ErrScope)
}

func TestReduce(t *testing.T) {
	f := mustFactor(t, []VarID{0, 1, 2}, []int{2, 3, 2}, []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})

	r, err := Reduce(f, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []VarID{0, 2}, r.Scope())
	assert.Equal(t, []float64{5, 6, 11, 12}, r.Values())

	r, err = Reduce(f, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9, 10, 11, 12}, r.Values())

	_, err = Reduce(f, 5, 0)
	assert.ErrorIs(t, err, ErrScope)

	_, err = Reduce(f, 1, 3)
	assert.ErrorIs(t, err, ErrStateRange)

	_, err = Reduce(f, 1, -1)
	assert.ErrorIs(t, err, ErrStateRange)
}

func TestReduce_DoesNotMutateSource(t *testing.T) {
	values := []float64{0.1, 0.9, 0.4, 0.6}
	f := mustFactor(t, []VarID{0, 1}, []int{2, 2}, values)

	_, err := Reduce(f, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, values, f.Values())
	assert.Equal(t, []VarID{0, 1}, f.Scope())
}

func TestNormalize(t *testing.T) {
	f := mustFactor(t, []VarID{0}, []int{4}, []float64{1, 1, 2, 4})

	n, err := Normalize(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.125, 0.125, 0.25, 0.5}, n.Values())
	assert.InDelta(t, 1.0, n.Sum(), 1e-12)

	_, err = Normalize(mustFactor(t, []VarID{0}, []int{2}, []float64{0, 0}))
	assert.ErrorIs(t, err, ErrDegenerateFactor)

	_, err = Normalize(mustFactor(t, []VarID{0}, []int{2}, []float64{math.NaN(), 1}))
	assert.ErrorIs(t, err, ErrDegenerateFactor)
}
