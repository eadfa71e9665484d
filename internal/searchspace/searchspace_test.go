package searchspace

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperparameterValidate(t *testing.T) {
	testCases := []struct {
		name      string
		hp        Hyperparameter
		expectErr bool
	}{
		{"categorical", Categorical("kernel", "rbf", "sigmoid"), false},
		{"categorical_no_choices", Categorical("kernel"), true},
		{"categorical_repeat", Categorical("kernel", "rbf", "rbf"), true},
		{"float", UniformFloat("C", 0.1, 10, false), false},
		{"float_inverted", UniformFloat("C", 10, 0.1, false), true},
		{"float_log_zero", UniformFloat("C", 0, 10, true), true},
		{"int", UniformInteger("depth", 1, 10, false), false},
		{"int_fractional", Hyperparameter{Name: "depth", Kind: KindUniformInteger, Lower: 0.5, Upper: 3}, true},
		{"constant", Constant("seed", Num(1)), false},
		{"empty_name", Constant("", Num(1)), true},
		{"unknown_kind", Hyperparameter{Name: "mystery", Kind: Kind(42)}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.hp.Validate()
			if tc.expectErr {
				if err == nil {
					t.Fatalf("Expected error for %+v, got nil", tc.hp)
				}
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("Expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestUnknownKindNamesHyperparameter(t *testing.T) {
	err := Hyperparameter{Name: "mystery", Kind: Kind(42)}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestValue(t *testing.T) {
	n := Num(0.5)
	assert.True(t, n.IsNumeric())
	assert.Equal(t, 0.5, n.Float())
	assert.Equal(t, "0.5", n.String())

	s := Str("rbf")
	assert.False(t, s.IsNumeric())
	assert.True(t, math.IsNaN(s.Float()))
	assert.Equal(t, "rbf", s.String())

	assert.Equal(t, "32768", Num(32768).String())
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(Categorical("a", "x"), UniformFloat("a", 0, 1, false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSpaceOrderAndLookup(t *testing.T) {
	s := MustNew(
		UniformFloat("C", 1, 2, false),
		Categorical("kernel", "rbf", "poly"),
		Constant("tol", Num(0.001)),
	)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"C", "kernel", "tol"}, s.Names())

	hp, ok := s.Lookup("kernel")
	require.True(t, ok)
	assert.Equal(t, KindCategorical, hp.Kind)

	_, ok = s.Lookup("gamma")
	assert.False(t, ok)

	cats := s.Categoricals()
	require.Len(t, cats, 1)
	assert.Equal(t, "kernel", cats[0].Name)
}

func TestSpaceIsImmutable(t *testing.T) {
	choices := []string{"a", "b"}
	s := MustNew(Categorical("x", choices...))
	choices[0] = "mutated"

	hp := s.At(0)
	hp.Choices[1] = "also mutated"

	assert.Equal(t, []string{"a", "b"}, s.At(0).Choices)
}

func TestNominal(t *testing.T) {
	assert.True(t, Categorical("k", "a").Nominal())
	assert.True(t, Constant("k", Str("auto")).Nominal())
	assert.False(t, Constant("k", Num(3)).Nominal())
	assert.False(t, UniformFloat("k", 0, 1, false).Nominal())
	assert.False(t, UniformInteger("k", 0, 1, false).Nominal())
}

func TestLookupClassifier(t *testing.T) {
	testCases := []struct {
		id     string
		flowID int
		params int
	}{
		{"random_forest", 6969, 5},
		{"adaboost", 6970, 4},
		{"libsvm_svc", 7707, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			c, err := LookupClassifier(tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.id, c.ID)
			assert.Equal(t, tc.flowID, c.FlowID)
			assert.Equal(t, tc.params, c.Space.Len())
		})
	}
}

func TestLookupClassifierUnknown(t *testing.T) {
	_, err := LookupClassifier("xgboost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.True(t, strings.Contains(err.Error(), "xgboost"))
}

func TestLibSVMSVCShape(t *testing.T) {
	s := LibSVMSVC()
	require.Equal(t, 3, s.Len())
	assert.Len(t, s.Categoricals(), 1)
	assert.Len(t, s.Categoricals()[0].Choices, 2)
	for i := 1; i < s.Len(); i++ {
		assert.Equal(t, KindUniformFloat, s.At(i).Kind)
	}
}

func TestClassifiersSorted(t *testing.T) {
	assert.Equal(t, []string{"adaboost", "libsvm_svc", "random_forest"}, Classifiers())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "categorical", KindCategorical.String())
	assert.Equal(t, "constant", KindConstant.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
