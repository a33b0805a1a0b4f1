package bayes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// chainNetwork is A -> B with P(A) = [0.5, 0.5], P(B=1|A=0) = 0.1 and
// P(B=1|A=1) = 0.9.
func chainNetwork(t *testing.T) *Network {
	t.Helper()
	b := NewBuilder()
	_, err := b.AddVariable("A", 2)
	require.NoError(t, err)
	_, err = b.AddVariable("B", 2)
	require.NoError(t, err)
	require.NoError(t, b.AddEdge("A", "B"))
	require.NoError(t, b.SetCPD("A", nil, []float64{0.5, 0.5}))
	require.NoError(t, b.SetCPD("B", []string{"A"}, []float64{
		0.9, 0.1, // B=0 given A=0, A=1
		0.1, 0.9, // B=1
	}))
	require.NoError(t, b.SetInterest("B", 1))
	net, err := b.Validate()
	require.NoError(t, err)
	return net
}

// boreholeNetwork mirrors the default water quality network.
func boreholeNetwork(t *testing.T, opts ...BuilderOption) *Network {
	t.Helper()
	b := NewBuilder(opts...)
	vars := []struct {
		name   string
		labels []string
	}{
		{"Rainfall", []string{"Low", "Medium", "High"}},
		{"Latrine_Dist", []string{"Safe", "Risky"}},
		{"Pump_Age", []string{"New", "Medium", "Old"}},
		{"Turbidity", []string{"Clear", "Slightly Cloudy", "Very Cloudy"}},
		{"Surface_Runoff", []string{"No", "Yes"}},
		{"Pump_Failure", []string{"Working", "Failed"}},
		{"Contamination", []string{"Safe", "Contaminated"}},
	}
	for _, v := range vars {
		_, err := b.AddVariable(v.name, len(v.labels), v.labels...)
		require.NoError(t, err)
	}
	for _, e := range [][2]string{
		{"Rainfall", "Turbidity"},
		{"Rainfall", "Surface_Runoff"},
		{"Turbidity", "Contamination"},
		{"Surface_Runoff", "Contamination"},
		{"Latrine_Dist", "Contamination"},
		{"Pump_Age", "Pump_Failure"},
	} {
		require.NoError(t, b.AddEdge(e[0], e[1]))
	}
	require.NoError(t, b.SetCPD("Rainfall", nil, []float64{0.5, 0.3, 0.2}))
	require.NoError(t, b.SetCPD("Latrine_Dist", nil, []float64{0.7, 0.3}))
	require.NoError(t, b.SetCPD("Pump_Age", nil, []float64{0.3, 0.5, 0.2}))
	require.NoError(t, b.SetCPD("Turbidity", []string{"Rainfall"}, []float64{
		0.90, 0.50, 0.10,
		0.08, 0.35, 0.30,
		0.02, 0.15, 0.60,
	}))
	require.NoError(t, b.SetCPD("Surface_Runoff", []string{"Rainfall"}, []float64{
		0.95, 0.40, 0.10,
		0.05, 0.60, 0.90,
	}))
	require.NoError(t, b.SetCPD("Pump_Failure", []string{"Pump_Age"}, []float64{
		0.98, 0.90, 0.70,
		0.02, 0.10, 0.30,
	}))
	require.NoError(t, b.SetCPD("Contamination", []string{"Turbidity", "Surface_Runoff", "Latrine_Dist"}, []float64{
		0.99, 0.95, 0.85, 0.70, 0.80, 0.60, 0.50, 0.30, 0.40, 0.20, 0.15, 0.05,
		0.01, 0.05, 0.15, 0.30, 0.20, 0.40, 0.50, 0.70, 0.60, 0.80, 0.85, 0.95,
	}))
	require.NoError(t, b.SetInterest("Contamination", 1))
	require.NoError(t, b.SetInterest("Pump_Failure", 1))
	net, err := b.Validate()
	require.NoError(t, err)
	return net
}

func mustID(t *testing.T, net *Network, name string) VarID {
	t.Helper()
	id, err := net.ID(name)
	require.NoError(t, err)
	return id
}

// enumerate visits every full assignment of net with its joint probability.
func enumerate(net *Network, fn func(assignment map[VarID]int, p float64)) {
	card := make([]int, net.Len())
	for i, v := range net.Variables() {
		card[i] = v.Card
	}
	states := make([]int, len(card))
	for {
		assignment := make(map[VarID]int, len(states))
		for i, s := range states {
			assignment[VarID(i)] = s
		}
		p := 1.0
		for _, f := range net.cpds {
			x, _ := f.Value(assignment)
			p *= x
		}
		fn(assignment, p)

		i := len(states) - 1
		for ; i >= 0; i-- {
			states[i]++
			if states[i] < card[i] {
				break
			}
			states[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// bruteMarginal computes P(target | ev) by summing the full joint.
func bruteMarginal(net *Network, target VarID, ev Evidence) []float64 {
	v, _ := net.Variable(target)
	out := make([]float64, v.Card)
	var total float64
	enumerate(net, func(a map[VarID]int, p float64) {
		for u, s := range ev {
			if a[u] != s {
				return
			}
		}
		out[a[target]] += p
		total += p
	})
	for i := range out {
		out[i] /= total
	}
	return out
}
