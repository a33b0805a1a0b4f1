package bayes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitivity_Chain(t *testing.T) {
	net := chainNetwork(t)
	s := NewSensitivityAnalyzer(NewEngine(net))
	a, b := mustID(t, net, "A"), mustID(t, net, "B")

	report, err := s.AnalyzeInterest(b, Evidence{a: 1})
	require.NoError(t, err)
	assert.Equal(t, b, report.Target)
	assert.Equal(t, 1, report.State)
	assert.InDelta(t, 0.9, report.Baseline, 1e-12)
	assert.InDelta(t, 0.8, report.Scores[a], 1e-12)
	require.Len(t, report.Ranking, 1)
	assert.Equal(t, a, report.Ranking[0].Variable)
}

func TestSensitivity_Borehole(t *testing.T) {
	net := boreholeNetwork(t)
	s := NewSensitivityAnalyzer(NewEngine(net))
	contamination := mustID(t, net, "Contamination")
	rainfall := mustID(t, net, "Rainfall")
	latrine := mustID(t, net, "Latrine_Dist")
	pumpAge := mustID(t, net, "Pump_Age")

	ev := Evidence{rainfall: 2, latrine: 1, pumpAge: 2}
	report, err := s.Analyze(contamination, 1, ev)
	require.NoError(t, err)

	assert.InDelta(t, bruteMarginal(net, contamination, ev)[1], report.Baseline, 1e-9)
	require.Len(t, report.Scores, 3)
	assert.InDelta(t, 0.0, report.Scores[pumpAge], 1e-12)

	for u, score := range report.Scores {
		assert.GreaterOrEqual(t, score, 0.0)

		v, _ := net.Variable(u)
		var want float64
		for alt := 0; alt < v.Card; alt++ {
			if alt == ev[u] {
				continue
			}
			p := bruteMarginal(net, contamination, ev.With(u, alt))[1]
			want = math.Max(want, math.Abs(p-report.Baseline))
		}
		assert.InDelta(t, want, score, 1e-9, v.Name)
	}

	require.Len(t, report.Ranking, 3)
	for i := 1; i < len(report.Ranking); i++ {
		assert.GreaterOrEqual(t, report.Ranking[i-1].Score, report.Ranking[i].Score)
	}
	assert.Equal(t, pumpAge, report.Ranking[2].Variable)
}

func TestSensitivity_NoEvidence(t *testing.T) {
	net := boreholeNetwork(t)
	s := NewSensitivityAnalyzer(NewEngine(net))

	report, err := s.AnalyzeInterest(mustID(t, net, "Contamination"), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Scores)
	assert.Empty(t, report.Ranking)
	assert.Greater(t, report.Baseline, 0.0)
}

func TestSensitivity_Errors(t *testing.T) {
	net := boreholeNetwork(t)
	s := NewSensitivityAnalyzer(NewEngine(net))
	contamination := mustID(t, net, "Contamination")
	rainfall := mustID(t, net, "Rainfall")

	_, err := s.AnalyzeInterest(rainfall, nil)
	assert.ErrorIs(t, err, ErrNoInterestState)

	_, err = s.Analyze(contamination, 2, nil)
	assert.ErrorIs(t, err, ErrStateRange)

	_, err = s.Analyze(contamination, 1, Evidence{contamination: 0})
	assert.ErrorIs(t, err, ErrTargetEvidenceConflict)

	_, err = s.Analyze(VarID(99), 0, nil)
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestSensitivity_SkipsImpossibleAlternatives(t *testing.T) {
	b := NewBuilder()
	_, _ = b.AddVariable("Gate", 2)
	_, _ = b.AddVariable("Signal", 3)
	_, _ = b.AddVariable("Alarm", 2)
	require.NoError(t, b.AddEdge("Gate", "Alarm"))
	require.NoError(t, b.AddEdge("Signal", "Alarm"))
	require.NoError(t, b.SetCPD("Gate", nil, []float64{0.5, 0.5}))
	// Signal state 2 never occurs
	require.NoError(t, b.SetCPD("Signal", nil, []float64{0.5, 0.5, 0}))
	require.NoError(t, b.SetCPD("Alarm", []string{"Gate", "Signal"}, []float64{
		0.9, 0.6, 0.5, 0.4, 0.1, 0.5,
		0.1, 0.4, 0.5, 0.6, 0.9, 0.5,
	}))
	require.NoError(t, b.SetInterest("Alarm", 1))
	net, err := b.Validate()
	require.NoError(t, err)

	s := NewSensitivityAnalyzer(NewEngine(net))
	report, err := s.AnalyzeInterest(2, Evidence{0: 1, 1: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, report.Baseline, 1e-12)
	assert.InDelta(t, 0.3, report.Scores[1], 1e-12)
	assert.InDelta(t, 0.5, report.Scores[0], 1e-12)
}
