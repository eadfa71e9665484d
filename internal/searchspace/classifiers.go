package searchspace

import (
	"fmt"
	"sort"
)

// Classifier binds a classifier identifier to its OpenML flow and the search
// space the surrogate grid is built over.
type Classifier struct {
	ID     string
	FlowID int
	Space  *Space
}

var classifiers = map[string]func() Classifier{
	"random_forest": func() Classifier {
		return Classifier{ID: "random_forest", FlowID: 6969, Space: RandomForest()}
	},
	"adaboost": func() Classifier {
		return Classifier{ID: "adaboost", FlowID: 6970, Space: AdaBoost()}
	},
	"libsvm_svc": func() Classifier {
		return Classifier{ID: "libsvm_svc", FlowID: 7707, Space: LibSVMSVC()}
	},
}

// LookupClassifier resolves a classifier identifier. Unknown identifiers are
// configuration errors.
func LookupClassifier(id string) (Classifier, error) {
	f, ok := classifiers[id]
	if !ok {
		return Classifier{}, fmt.Errorf("%w: classifier type not recognized: %q (known: %v)", ErrConfiguration, id, Classifiers())
	}
	return f(), nil
}

// Classifiers lists the known classifier identifiers in sorted order.
func Classifiers() []string {
	ids := make([]string, 0, len(classifiers))
	for id := range classifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RandomForest is the default search space for the random forest flow.
func RandomForest() *Space {
	return MustNew(
		Categorical("bootstrap", "true", "false"),
		Categorical("criterion", "gini", "entropy"),
		UniformFloat("max_features", 0.1, 0.9, false),
		UniformInteger("min_samples_leaf", 1, 20, false),
		UniformInteger("min_samples_split", 2, 20, false),
	)
}

// AdaBoost is the default search space for the AdaBoost flow.
func AdaBoost() *Space {
	return MustNew(
		Categorical("algorithm", "SAMME", "SAMME.R"),
		UniformFloat("learning_rate", 0.01, 2, true),
		UniformInteger("max_depth", 1, 10, false),
		UniformInteger("n_estimators", 50, 500, false),
	)
}

// LibSVMSVC is the default search space for the libsvm SVC flow.
func LibSVMSVC() *Space {
	return MustNew(
		Categorical("kernel", "rbf", "sigmoid"),
		UniformFloat("C", 0.03125, 32768, true),
		UniformFloat("gamma", 3.0517578125e-05, 8, true),
	)
}
