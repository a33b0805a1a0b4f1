package bayes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ScenarioMode selects how unobserved states are estimated.
type ScenarioMode string

const (
	// ModeIndependent takes the argmax of each variable's own posterior
	// marginal. The combined assignment can be jointly improbable.
	ModeIndependent ScenarioMode = "independent"
	// ModeJoint finds the single most probable joint assignment (MAP) by
	// max-product elimination.
	ModeJoint ScenarioMode = "joint"
)

// ParseScenarioMode maps "" to ModeIndependent.
func ParseScenarioMode(s string) (ScenarioMode, error) {
	switch ScenarioMode(s) {
	case "", ModeIndependent:
		return ModeIndependent, nil
	case ModeJoint:
		return ModeJoint, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Scenario is an estimated state for every unobserved variable.
type Scenario struct {
	Mode   ScenarioMode
	States map[VarID]int
	// Marginals holds P(v = States[v] | evidence); only filled in
	// ModeIndependent.
	Marginals map[VarID]float64
	// Joint is P(States | evidence) for the combined assignment.
	Joint float64
}

// ScenarioEstimator estimates the states of unobserved variables.
type ScenarioEstimator struct {
	engine *Engine
}

func NewScenarioEstimator(engine *Engine) *ScenarioEstimator {
	return &ScenarioEstimator{engine: engine}
}

// EstimateMode dispatches to Estimate or MostProbableExplanation.
func (s *ScenarioEstimator) EstimateMode(mode ScenarioMode, ev Evidence) (*Scenario, error) {
	if mode == ModeJoint {
		return s.MostProbableExplanation(ev)
	}
	return s.Estimate(ev)
}

// Estimate picks, independently for every unobserved variable, the state with
// the highest posterior marginal. Ties go to the lowest state index.
func (s *ScenarioEstimator) Estimate(ev Evidence) (*Scenario, error) {
	net := s.engine.net
	if err := net.CheckEvidence(ev); err != nil {
		return nil, err
	}
	sc := &Scenario{
		Mode:      ModeIndependent,
		States:    make(map[VarID]int),
		Marginals: make(map[VarID]float64),
	}
	for i := 0; i < net.Len(); i++ {
		v := VarID(i)
		if _, observed := ev[v]; observed {
			continue
		}
		res, err := s.engine.Query([]VarID{v}, ev)
		if err != nil {
			return nil, err
		}
		probs := res.Probabilities()
		// MaxIdx returns the first maximum, so ties go to the lowest state
		best := floats.MaxIdx(probs)
		sc.States[v] = best
		sc.Marginals[v] = probs[best]
	}

	joint, err := s.conditional(sc.States, ev)
	if err != nil {
		return nil, err
	}
	sc.Joint = joint
	return sc, nil
}

// MostProbableExplanation returns the jointly most probable assignment of all
// unobserved variables given ev. Variables are maxed out in heuristic order
// and their states recovered by back-tracking through the combined factors.
func (s *ScenarioEstimator) MostProbableExplanation(ev Evidence) (*Scenario, error) {
	net := s.engine.net
	if err := net.CheckEvidence(ev); err != nil {
		return nil, err
	}

	factors := make([]*Factor, 0, net.Len())
	hidden := make([]VarID, 0, net.Len())
	for i := 0; i < net.Len(); i++ {
		v := VarID(i)
		f := net.cpds[v]
		for _, u := range f.vars {
			state, observed := ev[u]
			if !observed {
				continue
			}
			var err error
			if f, err = Reduce(f, u, state); err != nil {
				return nil, err
			}
		}
		factors = append(factors, f)
		if _, observed := ev[v]; !observed {
			hidden = append(hidden, v)
		}
	}

	order := s.engine.heuristic.order(factors, hidden)
	rest, combined, err := eliminate(factors, order, MaxMarginalize)
	if err != nil {
		return nil, err
	}
	best := 1.0
	for _, f := range rest {
		best *= f.values[0]
	}
	if !(best > 0) {
		return nil, fmt.Errorf("%w: evidence has zero probability", ErrDegenerateFactor)
	}

	assignment := make(map[VarID]int, net.Len())
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		assignment[v] = argmaxGiven(combined[i], v, assignment)
	}

	pe, err := s.engine.ProbabilityOfEvidence(ev)
	if err != nil {
		return nil, err
	}
	if !(pe > 0) {
		return nil, fmt.Errorf("%w: evidence has zero probability", ErrDegenerateFactor)
	}
	return &Scenario{
		Mode:   ModeJoint,
		States: assignment,
		Joint:  best / pe,
	}, nil
}

// argmaxGiven returns the state of v maximizing psi with every other scope
// variable fixed by assignment. Ties go to the lowest state.
func argmaxGiven(psi *Factor, v VarID, assignment map[VarID]int) int {
	p := psi.position(v)
	offset := 0
	for i, u := range psi.vars {
		if i != p {
			offset += assignment[u] * psi.strides[i]
		}
	}
	best := 0
	for s := 1; s < psi.card[p]; s++ {
		if psi.values[offset+s*psi.strides[p]] > psi.values[offset+best*psi.strides[p]] {
			best = s
		}
	}
	return best
}

// conditional computes P(states | ev) for a full assignment of the network.
func (s *ScenarioEstimator) conditional(states map[VarID]int, ev Evidence) (float64, error) {
	full := make(map[VarID]int, len(states)+len(ev))
	for v, st := range states {
		full[v] = st
	}
	for v, st := range ev {
		full[v] = st
	}
	joint := 1.0
	for _, f := range s.engine.net.cpds {
		x, err := f.Value(full)
		if err != nil {
			return 0, err
		}
		joint *= x
	}
	pe, err := s.engine.ProbabilityOfEvidence(ev)
	if err != nil {
		return 0, err
	}
	if !(pe > 0) {
		return 0, fmt.Errorf("%w: evidence has zero probability", ErrDegenerateFactor)
	}
	return joint / pe, nil
}
