package surrogate

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	leaf      bool
}

// regressionTree is a CART tree grown to minimise squared error. Samples go
// left when x[feature] <= threshold.
type regressionTree struct {
	nodes []node
}

type treeParams struct {
	minSamplesSplit int
	minSamplesLeaf  int
	maxDepth        int
	maxFeatures     int
}

type treeBuilder struct {
	x      *mat.Dense
	y      []float64
	params treeParams
	rng    *rand.Rand
	tree   *regressionTree
	order  []int
}

func growTree(x *mat.Dense, y []float64, samples []int, params treeParams, rng *rand.Rand) *regressionTree {
	b := &treeBuilder{x: x, y: y, params: params, rng: rng, tree: &regressionTree{}}
	b.build(samples, 0)
	return b.tree
}

// build appends the subtree for samples and returns its node index.
func (b *treeBuilder) build(samples []int, depth int) int {
	idx := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{leaf: true, value: b.mean(samples)})

	if len(samples) < b.params.minSamplesSplit || len(samples) < 2*b.params.minSamplesLeaf {
		return idx
	}
	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return idx
	}
	if b.pure(samples) {
		return idx
	}

	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return idx
	}
	var left, right []int
	for _, s := range samples {
		if b.x.At(s, feature) <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.nodes[idx] = node{feature: feature, threshold: threshold, left: l, right: r}
	return idx
}

func (b *treeBuilder) mean(samples []int) float64 {
	var sum float64
	for _, s := range samples {
		sum += b.y[s]
	}
	return sum / float64(len(samples))
}

func (b *treeBuilder) pure(samples []int) bool {
	first := b.y[samples[0]]
	for _, s := range samples[1:] {
		if b.y[s] != first {
			return false
		}
	}
	return true
}

// bestSplit scans every candidate feature for the threshold with the lowest
// summed squared error of the two children. Ties keep the earlier feature.
func (b *treeBuilder) bestSplit(samples []int) (int, float64, bool) {
	_, cols := b.x.Dims()
	features := b.candidateFeatures(cols)
	n := len(samples)
	minLeaf := max(b.params.minSamplesLeaf, 1)

	if cap(b.order) < n {
		b.order = make([]int, n)
	}
	order := b.order[:n]
	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)

	bestCost := 0.0
	bestFeature, bestThreshold := -1, 0.0
	for _, f := range features {
		copy(order, samples)
		sort.SliceStable(order, func(i, j int) bool {
			return b.x.At(order[i], f) < b.x.At(order[j], f)
		})
		for i, s := range order {
			v := b.y[s]
			prefix[i+1] = prefix[i] + v
			prefixSq[i+1] = prefixSq[i] + v*v
		}
		total, totalSq := prefix[n], prefixSq[n]

		for i := minLeaf; i <= n-minLeaf; i++ {
			lo, hi := b.x.At(order[i-1], f), b.x.At(order[i], f)
			if lo == hi {
				continue
			}
			nl, nr := float64(i), float64(n-i)
			sl, sr := prefix[i], total-prefix[i]
			cost := (prefixSq[i] - sl*sl/nl) + (totalSq - prefixSq[i] - sr*sr/nr)
			if bestFeature < 0 || cost < bestCost {
				bestCost = cost
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				// The midpoint can round up to hi for adjacent floats.
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) candidateFeatures(cols int) []int {
	k := b.params.maxFeatures
	if k <= 0 || k >= cols {
		all := make([]int, cols)
		for i := range all {
			all[i] = i
		}
		return all
	}
	picked := b.rng.Perm(cols)[:k]
	sort.Ints(picked)
	return picked
}

func (t *regressionTree) predict(row []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

func (t *regressionTree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.leaf {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}
