package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/wellspring/internal/netdef"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseEvidence(t *testing.T) {
	obs, err := parseEvidence([]string{"Turbidity=Very Cloudy", " Latrine_Dist = 1 "})
	require.NoError(t, err)
	assert.Equal(t, "Very Cloudy", obs["Turbidity"].Label)
	assert.Equal(t, "1", obs["Latrine_Dist"].Label)

	for _, bad := range [][]string{{"Turbidity"}, {"=2"}, {"Turbidity="}, {"Rainfall=0", "Rainfall=1"}} {
		_, err := parseEvidence(bad)
		assert.Error(t, err, bad)
	}
}

func TestQueryCmd_JSON(t *testing.T) {
	out, err := run(t, "query", "--json", "-t", "Contamination",
		"-e", "Turbidity=Very Cloudy", "-e", "Surface_Runoff=Yes", "-e", "Latrine_Dist=1")
	require.NoError(t, err)

	var res service.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 0.95, res.Marginals["Contamination"]["Contaminated"], 1e-9)
	assert.Equal(t, "Contaminated", res.MostLikely["Contamination"])
}

func TestQueryCmd_Table(t *testing.T) {
	out, err := run(t, "query", "-t", "Pump_Failure", "-e", "Pump_Age=Old (>5yr)")
	require.NoError(t, err)
	assert.Contains(t, out, "Working")
	assert.Contains(t, out, "0.700000 *")
}

func TestQueryCmd_Errors(t *testing.T) {
	_, err := run(t, "query")
	assert.Error(t, err)

	_, err = run(t, "query", "-t", "Contamination", "-e", "Rainfall=Torrential")
	assert.Error(t, err)

	_, err = run(t, "query", "-t", "Contamination", "--heuristic", "random")
	assert.Error(t, err)
}

func TestSensitivityCmd(t *testing.T) {
	out, err := run(t, "sensitivity", "--json", "-t", "Contamination",
		"-e", "Turbidity=2", "-e", "Surface_Runoff=Yes", "-e", "Latrine_Dist=1")
	require.NoError(t, err)

	var res service.SensitivityResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Contaminated", res.State)
	require.Len(t, res.Ranking, 3)
	assert.Equal(t, "Turbidity", res.Ranking[0].Variable)
	assert.InDelta(t, 0.65, res.Ranking[0].Score, 1e-9)

	out, err = run(t, "sensitivity", "-t", "Contamination", "--state", "Safe", "-e", "Turbidity=2")
	require.NoError(t, err)
	assert.Contains(t, out, "P(Contamination = Safe | evidence)")
}

func TestScenarioCmd(t *testing.T) {
	out, err := run(t, "scenario", "--json", "--mode", "joint", "-e", "Pump_Age=2")
	require.NoError(t, err)

	var res service.ScenarioResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "joint", res.Mode)
	assert.NotContains(t, res.States, "Pump_Age")
	assert.Greater(t, res.Joint, 0.0)

	_, err = run(t, "scenario", "--mode", "greedy")
	assert.Error(t, err)
}

func TestDumpCmd_RoundTrips(t *testing.T) {
	out, err := run(t, "dump")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	def, _, err := netdef.Load(path)
	require.NoError(t, err)
	_, err = netdef.Build(def)
	require.NoError(t, err)

	out, err = run(t, "validate", "--model", path)
	require.NoError(t, err)
	assert.Contains(t, out, "borehole: 7 variables")
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "bnquery version dev")
}
