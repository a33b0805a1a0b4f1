package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"go.uber.org/zap"
)

var ErrInvalidInput = errors.New("invalid input")

// StateRef names a variable state either by index or by label. In JSON it is
// a number or a string. A string that matches no label but parses as an
// integer is read as an index, so labels that look like numbers still win.
type StateRef struct {
	Index *int
	Label string
}

func StateIndex(i int) StateRef { return StateRef{Index: &i} }

func StateLabel(l string) StateRef { return StateRef{Label: l} }

func (s *StateRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Label)
	}
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("state must be an index or a label: %w", err)
	}
	s.Index = &i
	return nil
}

func (s StateRef) MarshalJSON() ([]byte, error) {
	if s.Index != nil {
		return json.Marshal(*s.Index)
	}
	return json.Marshal(s.Label)
}

func (s StateRef) resolve(net *bayes.Network, id bayes.VarID) (int, error) {
	if s.Index != nil {
		return *s.Index, nil
	}
	state, err := net.StateIndex(id, s.Label)
	if err == nil {
		return state, nil
	}
	if i, convErr := strconv.Atoi(s.Label); convErr == nil {
		return i, nil
	}
	return 0, err
}

// Observations maps variable names to observed states.
type Observations map[string]StateRef

func (o Observations) resolve(net *bayes.Network) (bayes.Evidence, error) {
	named := make(map[string]int, len(o))
	for name, ref := range o {
		id, err := net.ID(name)
		if err != nil {
			return nil, err
		}
		state, err := ref.resolve(net, id)
		if err != nil {
			return nil, err
		}
		named[name] = state
	}
	return net.Evidence(named)
}

type QueryRequest struct {
	Targets  []string     `json:"targets"`
	Evidence Observations `json:"evidence"`
}

type QueryResult struct {
	Targets []string `json:"targets"`
	// Probabilities is the joint table over Targets, last target fastest.
	Probabilities []float64                     `json:"probabilities"`
	Marginals     map[string]map[string]float64 `json:"marginals"`
	MostLikely    map[string]string             `json:"most_likely"`
	Evidence      map[string]int                `json:"evidence_used"`
	Model         string                        `json:"model_checksum"`
}

type SensitivityRequest struct {
	Target string `json:"target"`
	// State defaults to the target's declared state of interest.
	State    *StateRef    `json:"state,omitempty"`
	Evidence Observations `json:"evidence"`
}

type RankedVariable struct {
	Variable string  `json:"variable"`
	Score    float64 `json:"score"`
}

type SensitivityResult struct {
	Target        string             `json:"target"`
	State         string             `json:"state"`
	Baseline      float64            `json:"baseline"`
	Scores        map[string]float64 `json:"sensitivity_scores"`
	Ranking       []RankedVariable   `json:"ranked_variables"`
	MostImpactful string             `json:"most_impactful,omitempty"`
	Model         string             `json:"model_checksum"`
}

type ScenarioRequest struct {
	Evidence Observations `json:"evidence"`
	Mode     string       `json:"mode,omitempty"`
}

type ScenarioResult struct {
	Mode      string             `json:"mode"`
	States    map[string]string  `json:"states"`
	Indices   map[string]int     `json:"state_indices"`
	Marginals map[string]float64 `json:"marginals,omitempty"`
	Joint     float64            `json:"joint_probability"`
	Evidence  map[string]int     `json:"evidence_used"`
	Model     string             `json:"model_checksum"`
}

type VariableInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Cardinality int      `json:"cardinality"`
	Labels      []string `json:"labels"`
	Interest    string   `json:"interest,omitempty"`
	Parents     []string `json:"parents"`
	Children    []string `json:"children"`
}

type ModelInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source"`
	Checksum    string         `json:"checksum"`
	LoadedAt    time.Time      `json:"loaded_at"`
	Heuristic   string         `json:"heuristic"`
	Variables   []VariableInfo `json:"variables"`
	TotalNodes  int            `json:"total_nodes"`
	TotalEdges  int            `json:"total_edges"`
}

type EdgeInfo struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

type Structure struct {
	Nodes    []string   `json:"nodes"`
	Edges    []EdgeInfo `json:"edges"`
	Topology []string   `json:"topological_order"`
}

// InferenceService exposes the engine by variable name.
type InferenceService struct {
	models *ModelService
	logger *zap.Logger
}

func NewInferenceService(models *ModelService, logger *zap.Logger) *InferenceService {
	return &InferenceService{models: models, logger: logger}
}

func (s *InferenceService) Query(ctx context.Context, req QueryRequest) (res *QueryResult, err error) {
	defer func(start time.Time) { observe("query", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := s.models.Current()
	net := m.Network
	if len(req.Targets) == 0 {
		return nil, bayes.ErrNoTargets
	}
	targets := make([]bayes.VarID, len(req.Targets))
	for i, name := range req.Targets {
		if targets[i], err = net.ID(name); err != nil {
			return nil, err
		}
	}
	ev, err := req.Evidence.resolve(net)
	if err != nil {
		return nil, err
	}

	r, err := m.Engine.Query(targets, ev)
	if err != nil {
		return nil, err
	}

	res = &QueryResult{
		Targets:       req.Targets,
		Probabilities: r.Probabilities(),
		Marginals:     make(map[string]map[string]float64, len(targets)),
		MostLikely:    make(map[string]string, len(targets)),
		Evidence:      net.Named(ev),
		Model:         m.Checksum,
	}
	argmax := r.Argmax()
	for i, id := range targets {
		v, _ := net.Variable(id)
		marginal, err := r.Marginal(id)
		if err != nil {
			return nil, err
		}
		labelled := make(map[string]float64, v.Card)
		for state, p := range marginal {
			labelled[v.Label(state)] = p
		}
		res.Marginals[v.Name] = labelled
		res.MostLikely[v.Name] = v.Label(argmax[i])
	}
	return res, nil
}

// Distribution is the posterior of one variable taken from a single model
// snapshot.
type Distribution struct {
	Variable      string
	Labels        []string
	Probabilities []float64
	Interest      int
	Checksum      string
}

// Posterior returns P(target | evidence) for named evidence. Interest is
// bayes.NoInterest when the target declares no state of interest.
func (s *InferenceService) Posterior(ctx context.Context, target string, evidence map[string]int) (d *Distribution, err error) {
	defer func(start time.Time) { observe("posterior", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := s.models.Current()
	id, err := m.Network.ID(target)
	if err != nil {
		return nil, err
	}
	ev, err := m.Network.Evidence(evidence)
	if err != nil {
		return nil, err
	}
	r, err := m.Engine.Query([]bayes.VarID{id}, ev)
	if err != nil {
		return nil, err
	}

	v, _ := m.Network.Variable(id)
	d = &Distribution{
		Variable:      v.Name,
		Probabilities: r.Probabilities(),
		Interest:      v.Interest,
		Checksum:      m.Checksum,
	}
	for state := 0; state < v.Card; state++ {
		d.Labels = append(d.Labels, v.Label(state))
	}
	return d, nil
}

func (s *InferenceService) Sensitivity(ctx context.Context, req SensitivityRequest) (res *SensitivityResult, err error) {
	defer func(start time.Time) { observe("sensitivity", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := s.models.Current()
	net := m.Network
	if req.Target == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidInput)
	}
	target, err := net.ID(req.Target)
	if err != nil {
		return nil, err
	}
	ev, err := req.Evidence.resolve(net)
	if err != nil {
		return nil, err
	}

	var report *bayes.SensitivityReport
	if req.State == nil {
		report, err = m.Sensitivity.AnalyzeInterest(target, ev)
	} else {
		var state int
		if state, err = req.State.resolve(net, target); err != nil {
			return nil, err
		}
		report, err = m.Sensitivity.Analyze(target, state, ev)
	}
	if err != nil {
		return nil, err
	}

	v, _ := net.Variable(target)
	res = &SensitivityResult{
		Target:   v.Name,
		State:    v.Label(report.State),
		Baseline: report.Baseline,
		Scores:   make(map[string]float64, len(report.Scores)),
		Ranking:  make([]RankedVariable, len(report.Ranking)),
		Model:    m.Checksum,
	}
	for id, score := range report.Scores {
		res.Scores[net.Name(id)] = score
	}
	for i, r := range report.Ranking {
		res.Ranking[i] = RankedVariable{Variable: net.Name(r.Variable), Score: r.Score}
	}
	if len(res.Ranking) > 0 {
		res.MostImpactful = res.Ranking[0].Variable
	}
	return res, nil
}

func (s *InferenceService) Scenario(ctx context.Context, req ScenarioRequest) (res *ScenarioResult, err error) {
	defer func(start time.Time) { observe("scenario", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode, err := bayes.ParseScenarioMode(req.Mode)
	if err != nil {
		return nil, err
	}
	m := s.models.Current()
	net := m.Network
	ev, err := req.Evidence.resolve(net)
	if err != nil {
		return nil, err
	}

	sc, err := m.Scenario.EstimateMode(mode, ev)
	if err != nil {
		return nil, err
	}

	res = &ScenarioResult{
		Mode:     string(sc.Mode),
		States:   make(map[string]string, len(sc.States)),
		Indices:  make(map[string]int, len(sc.States)),
		Joint:    sc.Joint,
		Evidence: net.Named(ev),
		Model:    m.Checksum,
	}
	for id, state := range sc.States {
		v, _ := net.Variable(id)
		res.States[v.Name] = v.Label(state)
		res.Indices[v.Name] = state
	}
	if len(sc.Marginals) > 0 {
		res.Marginals = make(map[string]float64, len(sc.Marginals))
		for id, p := range sc.Marginals {
			res.Marginals[net.Name(id)] = p
		}
	}
	return res, nil
}

// Model describes the current network.
func (s *InferenceService) Model() ModelInfo {
	m := s.models.Current()
	net := m.Network
	info := ModelInfo{
		Name:        m.Name,
		Description: m.Description,
		Source:      m.Source,
		Checksum:    m.Checksum,
		LoadedAt:    m.LoadedAt,
		Heuristic:   m.Engine.Heuristic().String(),
		TotalNodes:  net.Len(),
		TotalEdges:  len(net.Edges()),
	}
	for _, v := range net.Variables() {
		vi := VariableInfo{
			Name:        v.Name,
			Description: v.Description,
			Cardinality: v.Card,
			Parents:     names(net, net.Parents(v.ID)),
			Children:    names(net, net.Children(v.ID)),
		}
		for state := 0; state < v.Card; state++ {
			vi.Labels = append(vi.Labels, v.Label(state))
		}
		if v.Interest != bayes.NoInterest {
			vi.Interest = v.Label(v.Interest)
		}
		info.Variables = append(info.Variables, vi)
	}
	return info
}

func (s *InferenceService) Structure() Structure {
	net := s.models.Current().Network
	st := Structure{
		Nodes:    make([]string, 0, net.Len()),
		Edges:    make([]EdgeInfo, 0, len(net.Edges())),
		Topology: names(net, net.TopologicalOrder()),
	}
	for _, v := range net.Variables() {
		st.Nodes = append(st.Nodes, v.Name)
	}
	for _, e := range net.Edges() {
		st.Edges = append(st.Edges, EdgeInfo{Parent: net.Name(e.Parent), Child: net.Name(e.Child)})
	}
	return st
}

func names(net *bayes.Network, ids []bayes.VarID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = net.Name(id)
	}
	return out
}
