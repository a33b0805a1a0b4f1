package bayes

import (
	"fmt"
	"sort"
)

// Heuristic picks the next variable to eliminate. Every heuristic yields a
// correct result; they differ only in the size of intermediate factors.
type Heuristic int

const (
	// MinNeighbors eliminates the variable sharing a factor with the fewest
	// other variables.
	MinNeighbors Heuristic = iota
	// MinWeight eliminates the variable whose combined factor has the
	// fewest entries.
	MinWeight
	// MinFill eliminates the variable that adds the fewest new edges to the
	// interaction graph.
	MinFill
)

var heuristicNames = map[Heuristic]string{
	MinNeighbors: "min-neighbors",
	MinWeight:    "min-weight",
	MinFill:      "min-fill",
}

func (h Heuristic) String() string {
	if name, ok := heuristicNames[h]; ok {
		return name
	}
	return fmt.Sprintf("heuristic(%d)", int(h))
}

// ParseHeuristic accepts the names printed by Heuristic.String.
func ParseHeuristic(s string) (Heuristic, error) {
	for h, name := range heuristicNames {
		if name == s {
			return h, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHeuristic, s)
}

// order greedily sequences hidden by simulating elimination over the scopes
// of factors. Ties go to the lowest VarID.
func (h Heuristic) order(factors []*Factor, hidden []VarID) []VarID {
	card := make(map[VarID]int)
	scopes := make([]map[VarID]bool, 0, len(factors))
	for _, f := range factors {
		s := make(map[VarID]bool, len(f.vars))
		for i, v := range f.vars {
			s[v] = true
			card[v] = f.card[i]
		}
		scopes = append(scopes, s)
	}

	remaining := append([]VarID(nil), hidden...)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })

	order := make([]VarID, 0, len(remaining))
	for len(remaining) > 0 {
		best := 0
		bestCost := h.cost(remaining[0], scopes, card)
		for i := 1; i < len(remaining); i++ {
			if c := h.cost(remaining[i], scopes, card); c < bestCost {
				best, bestCost = i, c
			}
		}
		v := remaining[best]
		order = append(order, v)
		remaining = append(remaining[:best], remaining[best+1:]...)

		merged := make(map[VarID]bool)
		kept := make([]map[VarID]bool, 0, len(scopes))
		for _, s := range scopes {
			if !s[v] {
				kept = append(kept, s)
				continue
			}
			for u := range s {
				if u != v {
					merged[u] = true
				}
			}
		}
		scopes = append(kept, merged)
	}
	return order
}

func (h Heuristic) cost(v VarID, scopes []map[VarID]bool, card map[VarID]int) float64 {
	neighbors := make(map[VarID]bool)
	for _, s := range scopes {
		if !s[v] {
			continue
		}
		for u := range s {
			if u != v {
				neighbors[u] = true
			}
		}
	}

	switch h {
	case MinWeight:
		w := float64(card[v])
		for u := range neighbors {
			w *= float64(card[u])
		}
		return w
	case MinFill:
		list := make([]VarID, 0, len(neighbors))
		for u := range neighbors {
			list = append(list, u)
		}
		fill := 0
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if !adjacent(list[i], list[j], scopes) {
					fill++
				}
			}
		}
		return float64(fill)
	default:
		return float64(len(neighbors))
	}
}

func adjacent(a, b VarID, scopes []map[VarID]bool) bool {
	for _, s := range scopes {
		if s[a] && s[b] {
			return true
		}
	}
	return false
}
