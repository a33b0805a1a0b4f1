package bayes

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// DefaultTolerance bounds how far a CPD column may drift from summing to 1.
const DefaultTolerance = 1e-6

// NoInterest marks a variable without a declared state of interest.
const NoInterest = -1

// Variable is a discrete random variable of a Network.
type Variable struct {
	ID          VarID    `json:"id"`
	Name        string   `json:"name"`
	Card        int      `json:"cardinality"`
	Labels      []string `json:"labels,omitempty"`
	Interest    int      `json:"interest"`
	Description string   `json:"description,omitempty"`
}

// Label returns the human readable name of state, falling back to its index.
func (v Variable) Label(state int) string {
	if state >= 0 && state < len(v.Labels) {
		return v.Labels[state]
	}
	return strconv.Itoa(state)
}

func (v Variable) clone() Variable {
	v.Labels = append([]string(nil), v.Labels...)
	return v
}

// Edge is a directed dependency from Parent to Child.
type Edge struct {
	Parent VarID `json:"parent"`
	Child  VarID `json:"child"`
}

type cpdSpec struct {
	parents []VarID
	table   []float64
}

// Builder accumulates variables, edges and CPDs. Validate turns it into an
// immutable Network; the builder cannot be reused afterwards.
type Builder struct {
	vars      []Variable
	index     map[string]VarID
	edges     []Edge
	edgeSet   map[Edge]bool
	cpds      map[VarID]cpdSpec
	tolerance float64
	done      bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTolerance overrides DefaultTolerance for the normalization check.
func WithTolerance(tol float64) BuilderOption {
	return func(b *Builder) {
		b.tolerance = tol
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		index:     make(map[string]VarID),
		edgeSet:   make(map[Edge]bool),
		cpds:      make(map[VarID]cpdSpec),
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddVariable registers a variable with card states and optional labels.
func (b *Builder) AddVariable(name string, card int, labels ...string) (VarID, error) {
	if b.done {
		return 0, ErrBuilderUsed
	}
	if name == "" {
		return 0, fmt.Errorf("%w: empty variable name", ErrUnknownVariable)
	}
	if _, ok := b.index[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateVariable, name)
	}
	if card < 2 {
		return 0, fmt.Errorf("%w: %s has %d states, need at least 2", ErrInvalidCardinality, name, card)
	}
	if len(labels) > 0 && len(labels) != card {
		return 0, fmt.Errorf("%w: %s has %d states but %d labels", ErrInvalidCardinality, name, card, len(labels))
	}
	id := VarID(len(b.vars))
	b.vars = append(b.vars, Variable{
		ID:       id,
		Name:     name,
		Card:     card,
		Labels:   append([]string(nil), labels...),
		Interest: NoInterest,
	})
	b.index[name] = id
	return id, nil
}

// SetInterest declares the state of name that analyses score against, for
// example the "contaminated" state of a contamination variable.
func (b *Builder) SetInterest(name string, state int) error {
	id, err := b.lookup(name)
	if err != nil {
		return err
	}
	v := &b.vars[id]
	if state < 0 || state >= v.Card {
		return fmt.Errorf("%w: %s state %d not in [0,%d)", ErrStateRange, name, state, v.Card)
	}
	v.Interest = state
	return nil
}

func (b *Builder) SetDescription(name, description string) error {
	id, err := b.lookup(name)
	if err != nil {
		return err
	}
	b.vars[id].Description = description
	return nil
}

// AddEdge records parent -> child. Acyclicity is checked by Validate.
func (b *Builder) AddEdge(parent, child string) error {
	if b.done {
		return ErrBuilderUsed
	}
	p, err := b.lookup(parent)
	if err != nil {
		return err
	}
	c, err := b.lookup(child)
	if err != nil {
		return err
	}
	e := Edge{Parent: p, Child: c}
	if b.edgeSet[e] {
		return nil
	}
	b.edgeSet[e] = true
	b.edges = append(b.edges, e)
	return nil
}

// SetCPD attaches the conditional table of variable given parents.
//
// The table is row-major over [variable, parents...] with the last parent
// varying fastest: one row per state of variable, each row listing every
// parent assignment. Its length must be Card(variable) * prod(Card(parents)).
func (b *Builder) SetCPD(variable string, parents []string, table []float64) error {
	if b.done {
		return ErrBuilderUsed
	}
	child, err := b.lookup(variable)
	if err != nil {
		return err
	}
	ids := make([]VarID, 0, len(parents))
	seen := make(map[VarID]bool, len(parents))
	size := b.vars[child].Card
	for _, name := range parents {
		p, err := b.lookup(name)
		if err != nil {
			return err
		}
		if p == child || seen[p] {
			return fmt.Errorf("%w: %s lists parent %s more than once or as itself", ErrCPDShape, variable, name)
		}
		seen[p] = true
		ids = append(ids, p)
		size *= b.vars[p].Card
	}
	if len(table) != size {
		return fmt.Errorf("%w: %s expects %d values, got %d", ErrCPDShape, variable, size, len(table))
	}
	b.cpds[child] = cpdSpec{
		parents: ids,
		table:   append([]float64(nil), table...),
	}
	return nil
}

func (b *Builder) lookup(name string) (VarID, error) {
	id, ok := b.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return id, nil
}

// Validate checks, in order, acyclicity, CPD presence, CPD parent sets and
// CPD normalization. On success it returns the immutable Network.
func (b *Builder) Validate() (*Network, error) {
	if b.done {
		return nil, ErrBuilderUsed
	}
	n := len(b.vars)

	structural := make([][]VarID, n)
	children := make([][]VarID, n)
	for _, e := range b.edges {
		structural[e.Child] = append(structural[e.Child], e.Parent)
		children[e.Parent] = append(children[e.Parent], e.Child)
	}

	order, err := b.topologicalSort(structural, children)
	if err != nil {
		return nil, err
	}

	for _, v := range b.vars {
		if _, ok := b.cpds[v.ID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCPD, v.Name)
		}
	}

	for _, v := range b.vars {
		declared := b.cpds[v.ID].parents
		if !sameSet(declared, structural[v.ID]) {
			return nil, fmt.Errorf("%w: %s declares %v, graph has %v",
				ErrParentMismatch, v.Name, b.names(declared), b.names(structural[v.ID]))
		}
	}

	for _, v := range b.vars {
		if err := b.checkNormalized(v, b.cpds[v.ID]); err != nil {
			return nil, err
		}
	}

	net := &Network{
		vars:     make([]Variable, n),
		index:    make(map[string]VarID, n),
		parents:  make([][]VarID, n),
		children: make([][]VarID, n),
		cpds:     make([]*Factor, n),
		order:    order,
		edges:    append([]Edge(nil), b.edges...),
	}
	for _, v := range b.vars {
		spec := b.cpds[v.ID]
		vars := append([]VarID{v.ID}, spec.parents...)
		card := make([]int, len(vars))
		for i, u := range vars {
			card[i] = b.vars[u].Card
		}
		f := newFactor(vars, card)
		copy(f.values, spec.table)

		net.vars[v.ID] = v.clone()
		net.index[v.Name] = v.ID
		net.parents[v.ID] = append([]VarID(nil), spec.parents...)
		kids := append([]VarID(nil), children[v.ID]...)
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
		net.children[v.ID] = kids
		net.cpds[v.ID] = f
	}
	b.done = true
	return net, nil
}

// topologicalSort is Kahn's algorithm, always taking the lowest ready VarID.
func (b *Builder) topologicalSort(parents, children [][]VarID) ([]VarID, error) {
	n := len(b.vars)
	indegree := make([]int, n)
	for v := range parents {
		indegree[v] = len(parents[v])
	}
	placed := make([]bool, n)
	order := make([]VarID, 0, n)
	for len(order) < n {
		next := -1
		for v := 0; v < n; v++ {
			if !placed[v] && indegree[v] == 0 {
				next = v
				break
			}
		}
		if next < 0 {
			var stuck []string
			for v := 0; v < n; v++ {
				if !placed[v] {
					stuck = append(stuck, b.vars[v].Name)
				}
			}
			return nil, &CycleError{Variables: stuck}
		}
		placed[next] = true
		order = append(order, VarID(next))
		for _, c := range children[next] {
			indegree[c]--
		}
	}
	return order, nil
}

func (b *Builder) checkNormalized(v Variable, spec cpdSpec) error {
	columns := len(spec.table) / v.Card
	for j := 0; j < columns; j++ {
		var sum float64
		bad := false
		for c := 0; c < v.Card; c++ {
			x := spec.table[c*columns+j]
			if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				bad = true
			}
			sum += x
		}
		if bad || math.Abs(sum-1) > b.tolerance {
			return &NormalizationError{
				Variable:   v.Name,
				Assignment: b.decodeColumn(spec.parents, j),
				Sum:        sum,
			}
		}
	}
	return nil
}

// decodeColumn maps a CPD column index back to the parent assignment it
// represents, last parent fastest.
func (b *Builder) decodeColumn(parents []VarID, column int) map[string]int {
	assignment := make(map[string]int, len(parents))
	for i := len(parents) - 1; i >= 0; i-- {
		p := b.vars[parents[i]]
		assignment[p.Name] = column % p.Card
		column /= p.Card
	}
	return assignment
}

func (b *Builder) names(ids []VarID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = b.vars[id].Name
	}
	sort.Strings(out)
	return out
}

func sameSet(a, b []VarID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[VarID]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

// Network is a validated, immutable Bayesian network. All accessors return
// copies, so a Network can be shared freely between goroutines.
type Network struct {
	vars     []Variable
	index    map[string]VarID
	parents  [][]VarID
	children [][]VarID
	cpds     []*Factor
	order    []VarID
	edges    []Edge
}

// Len is the number of variables.
func (n *Network) Len() int { return len(n.vars) }

func (n *Network) valid(id VarID) bool {
	return id >= 0 && int(id) < len(n.vars)
}

// Variable returns the variable with the given id.
func (n *Network) Variable(id VarID) (Variable, error) {
	if !n.valid(id) {
		return Variable{}, fmt.Errorf("%w: id %d", ErrUnknownVariable, id)
	}
	return n.vars[id].clone(), nil
}

// Variables lists every variable in id order.
func (n *Network) Variables() []Variable {
	out := make([]Variable, len(n.vars))
	for i, v := range n.vars {
		out[i] = v.clone()
	}
	return out
}

// Lookup resolves a variable name to its id.
func (n *Network) Lookup(name string) (VarID, bool) {
	id, ok := n.index[name]
	return id, ok
}

// ID resolves a variable name, failing with ErrUnknownVariable.
func (n *Network) ID(name string) (VarID, error) {
	id, ok := n.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return id, nil
}

// Name returns the name of id, or "" if id is not part of the network.
func (n *Network) Name(id VarID) string {
	if !n.valid(id) {
		return ""
	}
	return n.vars[id].Name
}

// StateIndex resolves a state label of id.
func (n *Network) StateIndex(id VarID, label string) (int, error) {
	if !n.valid(id) {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownVariable, id)
	}
	for i, l := range n.vars[id].Labels {
		if l == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no state %q", ErrStateRange, n.vars[id].Name, label)
}

// Parents returns the parents of id in CPD declaration order.
func (n *Network) Parents(id VarID) []VarID {
	if !n.valid(id) {
		return nil
	}
	return append([]VarID(nil), n.parents[id]...)
}

func (n *Network) Children(id VarID) []VarID {
	if !n.valid(id) {
		return nil
	}
	return append([]VarID(nil), n.children[id]...)
}

// Edges lists the edges in the order they were added.
func (n *Network) Edges() []Edge {
	return append([]Edge(nil), n.edges...)
}

// TopologicalOrder lists every variable after all of its parents.
func (n *Network) TopologicalOrder() []VarID {
	return append([]VarID(nil), n.order...)
}

// CPD returns a copy of the conditional table of id as a factor over
// [id, parents...].
func (n *Network) CPD(id VarID) (*Factor, error) {
	if !n.valid(id) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownVariable, id)
	}
	f := n.cpds[id]
	return NewFactor(f.vars, f.card, f.values)
}

// Ancestors returns ids together with all of their ancestors, in id order.
func (n *Network) Ancestors(ids ...VarID) []VarID {
	marked := make([]bool, len(n.vars))
	stack := make([]VarID, 0, len(ids))
	for _, id := range ids {
		if n.valid(id) && !marked[id] {
			marked[id] = true
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range n.parents[v] {
			if !marked[p] {
				marked[p] = true
				stack = append(stack, p)
			}
		}
	}
	var out []VarID
	for v, ok := range marked {
		if ok {
			out = append(out, VarID(v))
		}
	}
	return out
}

// Evidence maps a variable id to its observed state.
type Evidence map[VarID]int

// With returns a copy of ev with v set to state.
func (ev Evidence) With(v VarID, state int) Evidence {
	out := make(Evidence, len(ev)+1)
	for k, s := range ev {
		out[k] = s
	}
	out[v] = state
	return out
}

// Evidence interns name-keyed observations.
func (n *Network) Evidence(named map[string]int) (Evidence, error) {
	ev := make(Evidence, len(named))
	for name, state := range named {
		id, err := n.ID(name)
		if err != nil {
			return nil, err
		}
		ev[id] = state
	}
	if err := n.CheckEvidence(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// CheckEvidence verifies that every key is a variable of n and every state is
// in range.
func (n *Network) CheckEvidence(ev Evidence) error {
	for id, state := range ev {
		if !n.valid(id) {
			return fmt.Errorf("%w: id %d", ErrUnknownVariable, id)
		}
		v := n.vars[id]
		if state < 0 || state >= v.Card {
			return fmt.Errorf("%w: %s state %d not in [0,%d)", ErrStateRange, v.Name, state, v.Card)
		}
	}
	return nil
}

// Named converts ev back to variable names.
func (n *Network) Named(ev Evidence) map[string]int {
	out := make(map[string]int, len(ev))
	for id, state := range ev {
		out[n.Name(id)] = state
	}
	return out
}
