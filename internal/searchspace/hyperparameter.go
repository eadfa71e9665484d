// Package searchspace describes hyperparameter search spaces and the closed
// table of classifiers the surrogate builder knows how to grid.
package searchspace

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrConfiguration marks caller mistakes: unknown classifiers, malformed
// hyperparameters and invalid grid resolutions. These abort a run.
var ErrConfiguration = errors.New("configuration error")

// Kind identifies how a hyperparameter is discretised.
type Kind int

const (
	KindCategorical Kind = iota + 1
	KindUniformFloat
	KindUniformInteger
	KindConstant
)

func (k Kind) String() string {
	switch k {
	case KindCategorical:
		return "categorical"
	case KindUniformFloat:
		return "uniform_float"
	case KindUniformInteger:
		return "uniform_int"
	case KindConstant:
		return "constant"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a concrete hyperparameter value: either a string or a number.
type Value struct {
	str     string
	num     float64
	numeric bool
}

// Str returns a string Value.
func Str(s string) Value { return Value{str: s} }

// Num returns a numeric Value.
func Num(f float64) Value { return Value{num: f, numeric: true} }

// IsNumeric reports whether v holds a number.
func (v Value) IsNumeric() bool { return v.numeric }

// Float returns the numeric payload, or NaN for string values.
func (v Value) Float() float64 {
	if !v.numeric {
		return math.NaN()
	}
	return v.num
}

// String renders the value the way it appears in output tables.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.str
}

// Hyperparameter is one dimension of a search space. Only the fields that
// belong to Kind are meaningful.
type Hyperparameter struct {
	Name string
	Kind Kind

	// Categorical
	Choices []string

	// UniformFloat, UniformInteger
	Lower float64
	Upper float64
	Log   bool

	// Constant
	Value Value
}

// Categorical declares a hyperparameter taking one of an ordered set of choices.
func Categorical(name string, choices ...string) Hyperparameter {
	return Hyperparameter{Name: name, Kind: KindCategorical, Choices: append([]string(nil), choices...)}
}

// UniformFloat declares a continuous range, optionally on a log scale.
func UniformFloat(name string, lower, upper float64, log bool) Hyperparameter {
	return Hyperparameter{Name: name, Kind: KindUniformFloat, Lower: lower, Upper: upper, Log: log}
}

// UniformInteger declares an integer range, optionally on a log scale.
func UniformInteger(name string, lower, upper int, log bool) Hyperparameter {
	return Hyperparameter{Name: name, Kind: KindUniformInteger, Lower: float64(lower), Upper: float64(upper), Log: log}
}

// Constant declares a hyperparameter fixed to a single value.
func Constant(name string, value Value) Hyperparameter {
	return Hyperparameter{Name: name, Kind: KindConstant, Value: value}
}

// Validate checks the kind-specific payload.
func (h Hyperparameter) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("%w: hyperparameter name must not be empty", ErrConfiguration)
	}
	switch h.Kind {
	case KindCategorical:
		if len(h.Choices) == 0 {
			return fmt.Errorf("%w: categorical hyperparameter %s has no choices", ErrConfiguration, h.Name)
		}
		seen := make(map[string]bool, len(h.Choices))
		for _, c := range h.Choices {
			if seen[c] {
				return fmt.Errorf("%w: categorical hyperparameter %s repeats choice %q", ErrConfiguration, h.Name, c)
			}
			seen[c] = true
		}
	case KindUniformFloat, KindUniformInteger:
		if math.IsNaN(h.Lower) || math.IsNaN(h.Upper) || h.Lower > h.Upper {
			return fmt.Errorf("%w: hyperparameter %s has invalid bounds [%g, %g]", ErrConfiguration, h.Name, h.Lower, h.Upper)
		}
		if h.Log && h.Lower <= 0 {
			return fmt.Errorf("%w: log-scale hyperparameter %s needs a positive lower bound, got %g", ErrConfiguration, h.Name, h.Lower)
		}
		if h.Kind == KindUniformInteger && (h.Lower != math.Trunc(h.Lower) || h.Upper != math.Trunc(h.Upper)) {
			return fmt.Errorf("%w: integer hyperparameter %s has non-integer bounds [%g, %g]", ErrConfiguration, h.Name, h.Lower, h.Upper)
		}
	case KindConstant:
	default:
		return UnknownKindError(h)
	}
	return nil
}

// UnknownKindError reports a hyperparameter whose kind has no discretisation rule.
func UnknownKindError(h Hyperparameter) error {
	return fmt.Errorf("%w: could not determine hyperparameter type: %s (%v)", ErrConfiguration, h.Name, h.Kind)
}

// Nominal reports whether values of h are written as nominal (string) columns.
func (h Hyperparameter) Nominal() bool {
	switch h.Kind {
	case KindCategorical:
		return true
	case KindConstant:
		return !h.Value.IsNumeric()
	}
	return false
}
