// Package netdef reads declarative Bayesian network definitions and builds
// validated networks from them.
package netdef

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"gopkg.in/yaml.v3"
)

//go:embed borehole.yaml
var boreholeYAML []byte

var (
	ErrInvalidDefinition = errors.New("invalid network definition")
	ErrUnsupportedFormat = errors.New("unsupported definition format")
)

// Definition is the on-disk form of a network. YAML and JSON share the same
// field names.
type Definition struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Variables   []Variable `yaml:"variables" json:"variables"`
	Edges       []Edge     `yaml:"edges" json:"edges"`
	CPDs        []CPD      `yaml:"cpds" json:"cpds"`
}

// Variable declares a node. Cardinality may be omitted when labels are given.
type Variable struct {
	Name        string   `yaml:"name" json:"name"`
	Cardinality int      `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	Labels      []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	// Interest names the state that risk and sensitivity analyses score
	// against, by label.
	Interest string `yaml:"interest,omitempty" json:"interest,omitempty"`
}

type Edge struct {
	Parent string `yaml:"parent" json:"parent"`
	Child  string `yaml:"child" json:"child"`
}

// CPD lists one row per state of Variable. Each row enumerates the parent
// assignments with the last parent varying fastest.
type CPD struct {
	Variable string      `yaml:"variable" json:"variable"`
	Parents  []string    `yaml:"parents,omitempty" json:"parents,omitempty"`
	Table    [][]float64 `yaml:"table" json:"table"`
}

// Load reads a .yaml, .yml or .json definition from path.
func Load(path string) (*Definition, []byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return def, data, nil
}

// Parse decodes a YAML or JSON document. JSON is valid YAML, so one decoder
// serves both. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if len(def.Variables) == 0 {
		return nil, fmt.Errorf("%w: no variables", ErrInvalidDefinition)
	}
	return &def, nil
}

// Build turns def into a validated network. Errors wrap ErrInvalidDefinition
// together with the underlying bayes error, so both errors.Is checks and
// bayes.IsConfigError keep working.
func Build(def *Definition, opts ...bayes.BuilderOption) (*bayes.Network, error) {
	net, err := build(def, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return net, nil
}

func build(def *Definition, opts ...bayes.BuilderOption) (*bayes.Network, error) {
	b := bayes.NewBuilder(opts...)
	cards := make(map[string]int, len(def.Variables))
	for _, v := range def.Variables {
		card := v.Cardinality
		if card == 0 {
			card = len(v.Labels)
		}
		cards[v.Name] = card
		if _, err := b.AddVariable(v.Name, card, v.Labels...); err != nil {
			return nil, err
		}
		if v.Description != "" {
			if err := b.SetDescription(v.Name, v.Description); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range def.Edges {
		if err := b.AddEdge(e.Parent, e.Child); err != nil {
			return nil, err
		}
	}
	for _, c := range def.CPDs {
		table, err := flatten(c, cards)
		if err != nil {
			return nil, err
		}
		if err := b.SetCPD(c.Variable, c.Parents, table); err != nil {
			return nil, err
		}
	}
	for _, v := range def.Variables {
		if v.Interest == "" {
			continue
		}
		state := indexOf(v.Labels, v.Interest)
		if state < 0 {
			return nil, fmt.Errorf("%w: %s has no state %q", bayes.ErrStateRange, v.Name, v.Interest)
		}
		if err := b.SetInterest(v.Name, state); err != nil {
			return nil, err
		}
	}
	return b.Validate()
}

// Default returns the embedded borehole water quality definition.
func Default() *Definition {
	def, err := Parse(boreholeYAML)
	if err != nil {
		panic(fmt.Sprintf("netdef: embedded borehole definition: %v", err))
	}
	return def
}

// DefaultSource returns the raw embedded definition.
func DefaultSource() []byte {
	return append([]byte(nil), boreholeYAML...)
}

// FromNetwork renders a validated network back into a definition.
func FromNetwork(name string, net *bayes.Network) (*Definition, error) {
	def := &Definition{Name: name}
	for _, v := range net.Variables() {
		dv := Variable{
			Name:        v.Name,
			Cardinality: v.Card,
			Labels:      v.Labels,
			Description: v.Description,
		}
		if v.Interest != bayes.NoInterest {
			dv.Interest = v.Label(v.Interest)
		}
		def.Variables = append(def.Variables, dv)
	}
	for _, e := range net.Edges() {
		def.Edges = append(def.Edges, Edge{Parent: net.Name(e.Parent), Child: net.Name(e.Child)})
	}
	for _, v := range net.Variables() {
		f, err := net.CPD(v.ID)
		if err != nil {
			return nil, err
		}
		c := CPD{Variable: v.Name}
		for _, p := range net.Parents(v.ID) {
			c.Parents = append(c.Parents, net.Name(p))
		}
		values := f.Values()
		width := len(values) / v.Card
		for s := 0; s < v.Card; s++ {
			c.Table = append(c.Table, values[s*width:(s+1)*width])
		}
		def.CPDs = append(def.CPDs, c)
	}
	return def, nil
}

// Marshal encodes def as YAML.
func Marshal(def *Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatten checks that c.Table has one row per state of c.Variable and one
// column per parent assignment, then concatenates the rows. Unknown names are
// left for the builder to report.
func flatten(c CPD, cards map[string]int) ([]float64, error) {
	card, ok := cards[c.Variable]
	if !ok {
		return concat(c.Table), nil
	}
	columns := 1
	for _, p := range c.Parents {
		pc, ok := cards[p]
		if !ok {
			return concat(c.Table), nil
		}
		columns *= pc
	}
	if len(c.Table) != card {
		return nil, fmt.Errorf("%w: %s table has %d rows, want %d", bayes.ErrCPDShape, c.Variable, len(c.Table), card)
	}
	for i, row := range c.Table {
		if len(row) != columns {
			return nil, fmt.Errorf("%w: %s table row %d has %d entries, want %d", bayes.ErrCPDShape, c.Variable, i, len(row), columns)
		}
	}
	return concat(c.Table), nil
}

func concat(rows [][]float64) []float64 {
	var out []float64
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
