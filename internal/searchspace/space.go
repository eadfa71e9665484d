package searchspace

import "fmt"

// Space is an ordered, immutable sequence of hyperparameters. The order is
// the column order of every table built from the space.
type Space struct {
	hps   []Hyperparameter
	index map[string]int
}

// New validates the hyperparameters and returns a Space holding copies of them.
func New(hps ...Hyperparameter) (*Space, error) {
	s := &Space{
		hps:   make([]Hyperparameter, 0, len(hps)),
		index: make(map[string]int, len(hps)),
	}
	for _, h := range hps {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[h.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate hyperparameter name %q", ErrConfiguration, h.Name)
		}
		h.Choices = append([]string(nil), h.Choices...)
		s.index[h.Name] = len(s.hps)
		s.hps = append(s.hps, h)
	}
	return s, nil
}

// MustNew is New for statically known spaces; it panics on error.
func MustNew(hps ...Hyperparameter) *Space {
	s, err := New(hps...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of hyperparameters.
func (s *Space) Len() int { return len(s.hps) }

// At returns the i-th hyperparameter. The Choices slice is a copy.
func (s *Space) At(i int) Hyperparameter {
	h := s.hps[i]
	h.Choices = append([]string(nil), h.Choices...)
	return h
}

// Names returns hyperparameter names in space order.
func (s *Space) Names() []string {
	out := make([]string, len(s.hps))
	for i, h := range s.hps {
		out[i] = h.Name
	}
	return out
}

// Lookup returns the hyperparameter called name.
func (s *Space) Lookup(name string) (Hyperparameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return Hyperparameter{}, false
	}
	return s.At(i), true
}

// Categoricals returns the categorical hyperparameters in space order.
func (s *Space) Categoricals() []Hyperparameter {
	var out []Hyperparameter
	for i := range s.hps {
		if s.hps[i].Kind == KindCategorical {
			out = append(out, s.At(i))
		}
	}
	return out
}
