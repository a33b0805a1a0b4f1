package bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// VarID is the interned index of a variable inside one Network.
type VarID int

// Factor is a dense table over an ordered scope of discrete variables.
//
// Values are stored row-major over the scope: the last variable varies
// fastest, so the offset of an assignment is sum(state[i] * strides[i]) with
// strides[len-1] == 1. A factor with an empty scope holds a single value.
// Factors are never mutated after construction.
type Factor struct {
	vars    []VarID
	card    []int
	strides []int
	values  []float64
}

// NewFactor copies vars, card and values into a new factor.
func NewFactor(vars []VarID, card []int, values []float64) (*Factor, error) {
	if len(vars) != len(card) {
		return nil, fmt.Errorf("%w: %d variables but %d cardinalities", ErrCPDShape, len(vars), len(card))
	}
	seen := make(map[VarID]bool, len(vars))
	for i, v := range vars {
		if seen[v] {
			return nil, fmt.Errorf("%w: variable %d repeated in scope", ErrCPDShape, v)
		}
		seen[v] = true
		if card[i] < 1 {
			return nil, fmt.Errorf("%w: variable %d has cardinality %d", ErrInvalidCardinality, v, card[i])
		}
	}
	f := newFactor(append([]VarID(nil), vars...), append([]int(nil), card...))
	if len(values) != len(f.values) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrCPDShape, len(f.values), len(values))
	}
	copy(f.values, values)
	return f, nil
}

// newFactor allocates a zeroed factor. vars and card are retained.
func newFactor(vars []VarID, card []int) *Factor {
	strides := make([]int, len(vars))
	size := 1
	for i := len(vars) - 1; i >= 0; i-- {
		strides[i] = size
		size *= card[i]
	}
	return &Factor{
		vars:    vars,
		card:    card,
		strides: strides,
		values:  make([]float64, size),
	}
}

// Scope returns a copy of the factor's ordered variables.
func (f *Factor) Scope() []VarID {
	return append([]VarID(nil), f.vars...)
}

// Cardinalities returns a copy of the cardinality of each scope variable.
func (f *Factor) Cardinalities() []int {
	return append([]int(nil), f.card...)
}

// Values returns a copy of the dense table.
func (f *Factor) Values() []float64 {
	return append([]float64(nil), f.values...)
}

// Len is the number of entries in the table.
func (f *Factor) Len() int { return len(f.values) }

// Contains reports whether v is in the factor's scope.
func (f *Factor) Contains(v VarID) bool {
	return f.position(v) >= 0
}

func (f *Factor) position(v VarID) int {
	for i, u := range f.vars {
		if u == v {
			return i
		}
	}
	return -1
}

// Value looks up the entry for a full assignment of the scope. Extra keys are
// ignored.
func (f *Factor) Value(assignment map[VarID]int) (float64, error) {
	offset := 0
	for i, v := range f.vars {
		state, ok := assignment[v]
		if !ok {
			return 0, fmt.Errorf("%w: variable %d unassigned", ErrScope, v)
		}
		if state < 0 || state >= f.card[i] {
			return 0, fmt.Errorf("%w: variable %d state %d", ErrStateRange, v, state)
		}
		offset += state * f.strides[i]
	}
	return f.values[offset], nil
}

// Sum adds up every entry.
func (f *Factor) Sum() float64 {
	return floats.Sum(f.values)
}

// Product multiplies two factors. The result's scope is a's scope followed by
// the variables of b that a does not contain.
func Product(a, b *Factor) *Factor {
	vars := append([]VarID(nil), a.vars...)
	card := append([]int(nil), a.card...)
	for i, v := range b.vars {
		if a.position(v) < 0 {
			vars = append(vars, v)
			card = append(card, b.card[i])
		}
	}
	out := newFactor(vars, card)

	sa := make([]int, len(vars))
	sb := make([]int, len(vars))
	for i, v := range vars {
		if p := a.position(v); p >= 0 {
			sa[i] = a.strides[p]
		}
		if p := b.position(v); p >= 0 {
			sb[i] = b.strides[p]
		}
	}

	i := 0
	walk(card, [][]int{sa, sb}, func(off []int) {
		out.values[i] = a.values[off[0]] * b.values[off[1]]
		i++
	})
	return out
}

// Marginalize sums v out of f.
func Marginalize(f *Factor, v VarID) (*Factor, error) {
	return collapse(f, v, func(acc, x float64) float64 { return acc + x }, 0)
}

// MaxMarginalize maximizes v out of f.
func MaxMarginalize(f *Factor, v VarID) (*Factor, error) {
	return collapse(f, v, math.Max, math.Inf(-1))
}

func collapse(f *Factor, v VarID, op func(acc, x float64) float64, init float64) (*Factor, error) {
	p := f.position(v)
	if p < 0 {
		return nil, fmt.Errorf("%w: variable %d", ErrScope, v)
	}
	vars := make([]VarID, 0, len(f.vars)-1)
	card := make([]int, 0, len(f.card)-1)
	for i, u := range f.vars {
		if i != p {
			vars = append(vars, u)
			card = append(card, f.card[i])
		}
	}
	out := newFactor(vars, card)
	for i := range out.values {
		out.values[i] = init
	}

	// Project each source offset onto the output; v's stride is zero.
	proj := make([]int, len(f.vars))
	j := 0
	for i := range f.vars {
		if i == p {
			continue
		}
		proj[i] = out.strides[j]
		j++
	}

	i := 0
	walk(f.card, [][]int{proj}, func(off []int) {
		out.values[off[0]] = op(out.values[off[0]], f.values[i])
		i++
	})
	return out, nil
}

// Reduce fixes v to state and drops v from the scope.
func Reduce(f *Factor, v VarID, state int) (*Factor, error) {
	p := f.position(v)
	if p < 0 {
		return nil, fmt.Errorf("%w: variable %d", ErrScope, v)
	}
	if state < 0 || state >= f.card[p] {
		return nil, fmt.Errorf("%w: variable %d state %d not in [0,%d)", ErrStateRange, v, state, f.card[p])
	}
	vars := make([]VarID, 0, len(f.vars)-1)
	card := make([]int, 0, len(f.card)-1)
	src := make([]int, 0, len(f.vars)-1)
	for i, u := range f.vars {
		if i != p {
			vars = append(vars, u)
			card = append(card, f.card[i])
			src = append(src, f.strides[i])
		}
	}
	out := newFactor(vars, card)
	base := state * f.strides[p]

	i := 0
	walk(card, [][]int{src}, func(off []int) {
		out.values[i] = f.values[base+off[0]]
		i++
	})
	return out, nil
}

// Normalize scales f so its entries sum to one.
func Normalize(f *Factor) (*Factor, error) {
	total := f.Sum()
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: sum is %g", ErrDegenerateFactor, total)
	}
	out := newFactor(append([]VarID(nil), f.vars...), append([]int(nil), f.card...))
	floats.ScaleTo(out.values, 1/total, f.values)
	return out, nil
}

// walk enumerates every assignment of card in row-major order and calls fn
// with the running offset of that assignment in each strided table.
func walk(card []int, strides [][]int, fn func(off []int)) {
	total := 1
	for _, c := range card {
		total *= c
	}
	off := make([]int, len(strides))
	assign := make([]int, len(card))
	for n := 0; n < total; n++ {
		fn(off)
		for l := len(card) - 1; l >= 0; l-- {
			assign[l]++
			if assign[l] < card[l] {
				for t := range strides {
					off[t] += strides[t][l]
				}
				break
			}
			assign[l] = 0
			for t := range strides {
				off[t] -= (card[l] - 1) * strides[t][l]
			}
		}
	}
}
