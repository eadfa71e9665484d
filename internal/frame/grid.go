package frame

import (
	"fmt"
	"math"

	"github.com/banshee-data/surrogate/internal/grid"
	"github.com/banshee-data/surrogate/internal/searchspace"
)

// FromConfigurations lays a grid out as a frame with one column per
// hyperparameter in space order. Categorical hyperparameters and string
// constants become nominal columns; everything else is numeric.
func FromConfigurations(space *searchspace.Space, configs []grid.Configuration) (*Frame, error) {
	f := New(len(configs))
	for i := 0; i < space.Len(); i++ {
		hp := space.At(i)
		if hp.Nominal() {
			vals := make([]string, len(configs))
			for r, cfg := range configs {
				v, ok := cfg[hp.Name]
				if !ok {
					return nil, fmt.Errorf("configuration %d has no value for %q", r, hp.Name)
				}
				vals[r] = v.String()
			}
			if err := f.AddNominal(hp.Name, vals); err != nil {
				return nil, err
			}
			continue
		}
		vals := make([]float64, len(configs))
		for r, cfg := range configs {
			v, ok := cfg[hp.Name]
			if !ok {
				return nil, fmt.Errorf("configuration %d has no value for %q", r, hp.Name)
			}
			vals[r] = v.Float()
			if math.IsNaN(vals[r]) {
				return nil, fmt.Errorf("configuration %d: %q is not numeric: %s", r, hp.Name, v)
			}
		}
		if err := f.AddNumeric(hp.Name, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}
