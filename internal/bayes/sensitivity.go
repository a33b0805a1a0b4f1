package bayes

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SensitivityAnalyzer ranks observed variables by how far the posterior of a
// target state moves when that one observation is changed.
//
// The score is a local evidence-perturbation measure: for each observed
// variable it is the largest absolute change of P(target = state | evidence)
// over every alternative observed state, holding the rest of the evidence
// fixed. It is not a derivative with respect to CPD parameters and not a
// Shapley attribution; interactions between observations are not captured.
type SensitivityAnalyzer struct {
	engine *Engine
}

func NewSensitivityAnalyzer(engine *Engine) *SensitivityAnalyzer {
	return &SensitivityAnalyzer{engine: engine}
}

// Ranked is one entry of a sensitivity ranking.
type Ranked struct {
	Variable VarID   `json:"variable"`
	Score    float64 `json:"score"`
}

// SensitivityReport holds the baseline posterior and one score per observed
// variable. Unobserved variables are not scored.
type SensitivityReport struct {
	Target   VarID
	State    int
	Baseline float64
	Scores   map[VarID]float64
	Ranking  []Ranked
}

// AnalyzeInterest scores against the target's declared state of interest.
func (s *SensitivityAnalyzer) AnalyzeInterest(target VarID, ev Evidence) (*SensitivityReport, error) {
	v, err := s.engine.net.Variable(target)
	if err != nil {
		return nil, err
	}
	if v.Interest == NoInterest {
		return nil, fmt.Errorf("%w: %s", ErrNoInterestState, v.Name)
	}
	return s.Analyze(target, v.Interest, ev)
}

// Analyze scores every variable of ev against P(target = state | ev).
func (s *SensitivityAnalyzer) Analyze(target VarID, state int, ev Evidence) (*SensitivityReport, error) {
	v, err := s.engine.net.Variable(target)
	if err != nil {
		return nil, err
	}
	if state < 0 || state >= v.Card {
		return nil, fmt.Errorf("%w: %s state %d not in [0,%d)", ErrStateRange, v.Name, state, v.Card)
	}
	baseline, err := s.posterior(target, state, ev)
	if err != nil {
		return nil, err
	}

	observed := make([]VarID, 0, len(ev))
	for u := range ev {
		observed = append(observed, u)
	}
	sort.Slice(observed, func(i, j int) bool { return observed[i] < observed[j] })

	scores := make([]float64, len(observed))
	var g errgroup.Group
	for i, u := range observed {
		g.Go(func() error {
			card := s.engine.net.vars[u].Card
			var best float64
			for alt := 0; alt < card; alt++ {
				if alt == ev[u] {
					continue
				}
				p, err := s.posterior(target, state, ev.With(u, alt))
				if errors.Is(err, ErrDegenerateFactor) {
					// impossible alternative observation
					continue
				}
				if err != nil {
					return err
				}
				best = math.Max(best, math.Abs(p-baseline))
			}
			scores[i] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &SensitivityReport{
		Target:   target,
		State:    state,
		Baseline: baseline,
		Scores:   make(map[VarID]float64, len(observed)),
		Ranking:  make([]Ranked, len(observed)),
	}
	for i, u := range observed {
		report.Scores[u] = scores[i]
		report.Ranking[i] = Ranked{Variable: u, Score: scores[i]}
	}
	sort.SliceStable(report.Ranking, func(i, j int) bool {
		return report.Ranking[i].Score > report.Ranking[j].Score
	})
	return report, nil
}

func (s *SensitivityAnalyzer) posterior(target VarID, state int, ev Evidence) (float64, error) {
	res, err := s.engine.Query([]VarID{target}, ev)
	if err != nil {
		return 0, err
	}
	return res.Prob(state)
}
