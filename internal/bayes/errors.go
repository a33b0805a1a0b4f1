package bayes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Construction errors. A network that fails with any of these never becomes
// queryable.
var (
	ErrDuplicateVariable  = errors.New("duplicate variable")
	ErrInvalidCardinality = errors.New("invalid cardinality")
	ErrCPDShape           = errors.New("cpd shape mismatch")
	ErrCycle              = errors.New("network contains a cycle")
	ErrMissingCPD         = errors.New("missing cpd")
	ErrParentMismatch     = errors.New("cpd parents do not match network structure")
	ErrNormalization      = errors.New("cpd column does not sum to 1")
	ErrBuilderUsed        = errors.New("builder already validated")
	ErrInvalidOrder       = errors.New("invalid elimination order")
	ErrUnknownHeuristic   = errors.New("unknown elimination heuristic")
)

// Query-input errors. These are reported per call and never touch the
// shared network.
var (
	ErrUnknownVariable        = errors.New("unknown variable")
	ErrStateRange             = errors.New("state out of range")
	ErrTargetEvidenceConflict = errors.New("variable is both a target and evidence")
	ErrNoTargets              = errors.New("no query targets")
	ErrDuplicateTarget        = errors.New("duplicate query target")
	ErrNoInterestState        = errors.New("variable has no declared state of interest")
	ErrUnknownMode            = errors.New("unknown scenario mode")
)

// Factor algebra errors.
var (
	ErrScope            = errors.New("variable not in factor scope")
	ErrDegenerateFactor = errors.New("factor sums to zero")
)

// CycleError reports the variables that could not be ordered topologically.
type CycleError struct {
	Variables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Variables, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// NormalizationError names the CPD column that failed the sum-to-one check.
type NormalizationError struct {
	Variable   string
	Assignment map[string]int
	Sum        float64
}

func (e *NormalizationError) Error() string {
	parts := make([]string, 0, len(e.Assignment))
	for name, state := range e.Assignment {
		parts = append(parts, fmt.Sprintf("%s=%d", name, state))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s: %s given {%s} sums to %g", ErrNormalization, e.Variable, strings.Join(parts, ", "), e.Sum)
}

func (e *NormalizationError) Unwrap() error { return ErrNormalization }

// IsConfigError reports whether err is a construction-time error.
func IsConfigError(err error) bool {
	for _, target := range []error{
		ErrDuplicateVariable, ErrInvalidCardinality, ErrCPDShape, ErrCycle,
		ErrMissingCPD, ErrParentMismatch, ErrNormalization, ErrBuilderUsed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsQueryError reports whether err was caused by the caller's query input.
func IsQueryError(err error) bool {
	for _, target := range []error{
		ErrUnknownVariable, ErrStateRange, ErrTargetEvidenceConflict,
		ErrNoTargets, ErrDuplicateTarget, ErrNoInterestState, ErrInvalidOrder,
		ErrUnknownMode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
