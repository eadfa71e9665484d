// Package grid enumerates a search space into a bounded grid of
// configurations: every categorical choice, and a fixed number of points per
// numeric range.
package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/surrogate/internal/searchspace"
)

// MaxConfigurations caps the grid size to keep allocation bounded.
const MaxConfigurations = 1 << 24

// Configuration maps hyperparameter names to concrete values.
type Configuration map[string]searchspace.Value

// Generate returns the full cross product of discretised values for space,
// using at most maxValues points per numeric hyperparameter.
//
// The first hyperparameter varies fastest. Output is deterministic and is
// never sorted or deduplicated: rounding an integer range can repeat values.
func Generate(space *searchspace.Space, maxValues int) ([]Configuration, error) {
	total, err := Size(space, maxValues)
	if err != nil {
		return nil, err
	}
	values := make([][]searchspace.Value, space.Len())
	for i := range values {
		v, err := Values(space.At(i), maxValues)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	configs := expand(space, values, 0)
	if len(configs) != total {
		return nil, fmt.Errorf("grid expanded to %d configurations, expected %d", len(configs), total)
	}
	return configs, nil
}

// expand builds the configurations for hyperparameters [index, len). Each
// level pairs every deeper configuration with each of its own values.
func expand(space *searchspace.Space, values [][]searchspace.Value, index int) []Configuration {
	if index >= space.Len() {
		return []Configuration{{}}
	}
	name := space.At(index).Name
	current := values[index]
	deeper := expand(space, values, index+1)

	result := make([]Configuration, 0, len(deeper)*len(current))
	for _, cfg := range deeper {
		for _, v := range current {
			cp := make(Configuration, len(cfg)+1)
			for k, existing := range cfg {
				cp[k] = existing
			}
			cp[name] = v
			result = append(result, cp)
		}
	}
	return result
}

// Size returns the number of configurations Generate would produce.
func Size(space *searchspace.Space, maxValues int) (int, error) {
	if maxValues < 1 {
		return 0, fmt.Errorf("%w: max values per parameter must be at least 1, got %d", searchspace.ErrConfiguration, maxValues)
	}
	total := int64(1)
	for i := 0; i < space.Len(); i++ {
		b, err := Branching(space.At(i), maxValues)
		if err != nil {
			return 0, err
		}
		total *= int64(b)
		if total > MaxConfigurations {
			return 0, fmt.Errorf("%w: grid would exceed %d configurations", searchspace.ErrConfiguration, MaxConfigurations)
		}
	}
	return int(total), nil
}

// Branching returns how many values hp contributes to the grid.
func Branching(hp searchspace.Hyperparameter, maxValues int) (int, error) {
	switch hp.Kind {
	case searchspace.KindCategorical:
		return len(hp.Choices), nil
	case searchspace.KindUniformFloat:
		return maxValues, nil
	case searchspace.KindUniformInteger:
		return integerPoints(hp, maxValues), nil
	case searchspace.KindConstant:
		return 1, nil
	}
	return 0, searchspace.UnknownKindError(hp)
}

// Values discretises a single hyperparameter.
func Values(hp searchspace.Hyperparameter, maxValues int) ([]searchspace.Value, error) {
	if maxValues < 1 {
		return nil, fmt.Errorf("%w: max values per parameter must be at least 1, got %d", searchspace.ErrConfiguration, maxValues)
	}
	switch hp.Kind {
	case searchspace.KindCategorical:
		out := make([]searchspace.Value, len(hp.Choices))
		for i, c := range hp.Choices {
			out[i] = searchspace.Str(c)
		}
		return out, nil
	case searchspace.KindUniformFloat:
		return numbers(spaced(hp.Lower, hp.Upper, maxValues, hp.Log)), nil
	case searchspace.KindUniformInteger:
		points := spaced(hp.Lower, hp.Upper, integerPoints(hp, maxValues), hp.Log)
		// Halves round to even.
		for i, p := range points {
			points[i] = math.RoundToEven(p)
		}
		return numbers(points), nil
	case searchspace.KindConstant:
		return []searchspace.Value{hp.Value}, nil
	}
	return nil, searchspace.UnknownKindError(hp)
}

// integerPoints never asks for more points than there are integers in range.
func integerPoints(hp searchspace.Hyperparameter, maxValues int) int {
	possible := int(hp.Upper-hp.Lower) + 1
	if possible < maxValues {
		return possible
	}
	return maxValues
}

// spaced returns n evenly spaced points in [lower, upper], linearly or in
// natural-log space.
func spaced(lower, upper float64, n int, log bool) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lower}
	}
	dst := make([]float64, n)
	if log {
		return floats.LogSpan(dst, lower, upper)
	}
	return floats.Span(dst, lower, upper)
}

func numbers(xs []float64) []searchspace.Value {
	out := make([]searchspace.Value, len(xs))
	for i, x := range xs {
		out[i] = searchspace.Num(x)
	}
	return out
}
