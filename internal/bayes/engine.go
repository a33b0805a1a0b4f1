package bayes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Engine answers exact marginal queries over a Network by variable
// elimination. It keeps no state between calls: every query allocates its own
// scratch factors, so one Engine may serve any number of goroutines.
type Engine struct {
	net       *Network
	heuristic Heuristic
	prune     bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHeuristic selects the elimination ordering heuristic.
func WithHeuristic(h Heuristic) EngineOption {
	return func(e *Engine) {
		e.heuristic = h
	}
}

// WithPruning toggles barren-node pruning. When enabled (the default) only
// the CPDs of ancestors of the targets and evidence take part in a query.
func WithPruning(enabled bool) EngineOption {
	return func(e *Engine) {
		e.prune = enabled
	}
}

func NewEngine(net *Network, opts ...EngineOption) *Engine {
	e := &Engine{
		net:       net,
		heuristic: MinNeighbors,
		prune:     true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Network returns the network the engine queries.
func (e *Engine) Network() *Network { return e.net }

// Heuristic returns the elimination heuristic in use.
func (e *Engine) Heuristic() Heuristic { return e.heuristic }

// Query returns P(targets | ev) as a normalized joint table. The table is
// always rescaled to sum to 1, so a root queried without evidence returns its
// prior CPD divided by the column sum; a prior accepted within the validation
// tolerance comes back within that tolerance of the stored values.
func (e *Engine) Query(targets []VarID, ev Evidence) (*Result, error) {
	if err := e.checkQuery(targets, ev); err != nil {
		return nil, err
	}
	factors, hidden, err := e.prepare(targets, ev)
	if err != nil {
		return nil, err
	}
	order := e.heuristic.order(factors, hidden)
	return e.run(targets, factors, order)
}

// QueryWithOrder is Query with an explicit elimination order. order must list
// every variable that is neither a target nor observed exactly once.
func (e *Engine) QueryWithOrder(targets []VarID, ev Evidence, order []VarID) (*Result, error) {
	if err := e.checkQuery(targets, ev); err != nil {
		return nil, err
	}
	if err := e.checkOrder(targets, ev, order); err != nil {
		return nil, err
	}
	factors, hidden, err := e.prepare(targets, ev)
	if err != nil {
		return nil, err
	}
	relevant := make(map[VarID]bool, len(hidden))
	for _, v := range hidden {
		relevant[v] = true
	}
	filtered := make([]VarID, 0, len(hidden))
	for _, v := range order {
		if relevant[v] {
			filtered = append(filtered, v)
		}
	}
	return e.run(targets, factors, filtered)
}

// ProbabilityOfEvidence returns P(ev). An empty evidence set has probability 1.
func (e *Engine) ProbabilityOfEvidence(ev Evidence) (float64, error) {
	if err := e.net.CheckEvidence(ev); err != nil {
		return 0, err
	}
	factors, hidden, err := e.prepare(nil, ev)
	if err != nil {
		return 0, err
	}
	factors, _, err = eliminate(factors, e.heuristic.order(factors, hidden), Marginalize)
	if err != nil {
		return 0, err
	}
	p := 1.0
	for _, f := range factors {
		p *= f.Sum()
	}
	return p, nil
}

func (e *Engine) checkQuery(targets []VarID, ev Evidence) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	seen := make(map[VarID]bool, len(targets))
	for _, t := range targets {
		if !e.net.valid(t) {
			return fmt.Errorf("%w: id %d", ErrUnknownVariable, t)
		}
		if seen[t] {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, e.net.Name(t))
		}
		seen[t] = true
	}
	if err := e.net.CheckEvidence(ev); err != nil {
		return err
	}
	for _, t := range targets {
		if _, ok := ev[t]; ok {
			return fmt.Errorf("%w: %s", ErrTargetEvidenceConflict, e.net.Name(t))
		}
	}
	return nil
}

func (e *Engine) checkOrder(targets []VarID, ev Evidence, order []VarID) error {
	excluded := make(map[VarID]bool, len(targets)+len(ev))
	for _, t := range targets {
		excluded[t] = true
	}
	for v := range ev {
		excluded[v] = true
	}
	want := e.net.Len() - len(excluded)
	if len(order) != want {
		return fmt.Errorf("%w: expected %d variables, got %d", ErrInvalidOrder, want, len(order))
	}
	seen := make(map[VarID]bool, len(order))
	for _, v := range order {
		if !e.net.valid(v) || excluded[v] || seen[v] {
			return fmt.Errorf("%w: variable %d misplaced", ErrInvalidOrder, v)
		}
		seen[v] = true
	}
	return nil
}

// prepare collects the CPD factors that take part in a query, reduces them by
// the evidence and returns the variables left to eliminate.
func (e *Engine) prepare(targets []VarID, ev Evidence) ([]*Factor, []VarID, error) {
	var relevant []VarID
	if e.prune {
		seeds := append([]VarID(nil), targets...)
		for v := range ev {
			seeds = append(seeds, v)
		}
		relevant = e.net.Ancestors(seeds...)
	} else {
		relevant = make([]VarID, e.net.Len())
		for i := range relevant {
			relevant[i] = VarID(i)
		}
	}

	isTarget := make(map[VarID]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}

	factors := make([]*Factor, 0, len(relevant))
	hidden := make([]VarID, 0, len(relevant))
	for _, v := range relevant {
		f := e.net.cpds[v]
		for _, u := range f.vars {
			state, observed := ev[u]
			if !observed {
				continue
			}
			var err error
			if f, err = Reduce(f, u, state); err != nil {
				return nil, nil, err
			}
		}
		factors = append(factors, f)
		if _, observed := ev[v]; !observed && !isTarget[v] {
			hidden = append(hidden, v)
		}
	}
	return factors, hidden, nil
}

func (e *Engine) run(targets []VarID, factors []*Factor, order []VarID) (*Result, error) {
	factors, _, err := eliminate(factors, order, Marginalize)
	if err != nil {
		return nil, err
	}
	joint := factors[0]
	for _, f := range factors[1:] {
		joint = Product(joint, f)
	}
	joint, err = Normalize(permute(joint, targets))
	if err != nil {
		return nil, err
	}
	return &Result{factor: joint}, nil
}

// eliminate removes each variable of order from the factor list by
// multiplying the factors that mention it and collapsing it with op. The
// combined factor built for each variable is returned alongside, in order.
func eliminate(factors []*Factor, order []VarID, op func(*Factor, VarID) (*Factor, error)) ([]*Factor, []*Factor, error) {
	combined := make([]*Factor, 0, len(order))
	for _, v := range order {
		var product *Factor
		rest := make([]*Factor, 0, len(factors))
		for _, f := range factors {
			if !f.Contains(v) {
				rest = append(rest, f)
				continue
			}
			if product == nil {
				product = f
			} else {
				product = Product(product, f)
			}
		}
		if product == nil {
			combined = append(combined, nil)
			continue
		}
		combined = append(combined, product)
		reduced, err := op(product, v)
		if err != nil {
			return nil, nil, err
		}
		factors = append(rest, reduced)
	}
	return factors, combined, nil
}

// permute reorders the scope of f to vars, which must be a permutation of it.
func permute(f *Factor, vars []VarID) *Factor {
	card := make([]int, len(vars))
	src := make([]int, len(vars))
	for i, v := range vars {
		p := f.position(v)
		card[i] = f.card[p]
		src[i] = f.strides[p]
	}
	out := newFactor(append([]VarID(nil), vars...), card)
	i := 0
	walk(card, [][]int{src}, func(off []int) {
		out.values[i] = f.values[off[0]]
		i++
	})
	return out
}

// Result is the normalized joint distribution over the queried targets,
// stored row-major in target order.
type Result struct {
	factor *Factor
}

// Targets returns the queried variables in request order.
func (r *Result) Targets() []VarID { return r.factor.Scope() }

// Probabilities returns the joint table, last target varying fastest. For a
// single target this is P(target = s) indexed by state s.
func (r *Result) Probabilities() []float64 { return r.factor.Values() }

// Factor returns a copy of the underlying table.
func (r *Result) Factor() *Factor {
	f, _ := NewFactor(r.factor.vars, r.factor.card, r.factor.values)
	return f
}

// Prob returns the probability of one joint assignment, states given in
// target order.
func (r *Result) Prob(states ...int) (float64, error) {
	if len(states) != len(r.factor.vars) {
		return 0, fmt.Errorf("%w: expected %d states, got %d", ErrStateRange, len(r.factor.vars), len(states))
	}
	offset := 0
	for i, s := range states {
		if s < 0 || s >= r.factor.card[i] {
			return 0, fmt.Errorf("%w: state %d of target %d", ErrStateRange, s, r.factor.vars[i])
		}
		offset += s * r.factor.strides[i]
	}
	return r.factor.values[offset], nil
}

// Marginal sums every other target out of the result.
func (r *Result) Marginal(v VarID) ([]float64, error) {
	if !r.factor.Contains(v) {
		return nil, fmt.Errorf("%w: variable %d", ErrScope, v)
	}
	f := r.factor
	for _, u := range r.factor.vars {
		if u == v {
			continue
		}
		var err error
		if f, err = Marginalize(f, u); err != nil {
			return nil, err
		}
	}
	return f.Values(), nil
}

// Argmax returns the most probable joint assignment in target order. Ties go
// to the assignment that comes first in row-major order.
func (r *Result) Argmax() []int {
	best := floats.MaxIdx(r.factor.values)
	states := make([]int, len(r.factor.vars))
	for i := range r.factor.vars {
		states[i] = best / r.factor.strides[i] % r.factor.card[i]
	}
	return states
}
