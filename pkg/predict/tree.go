package predict

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// mtry is the number of features tried at each split.
const mtry = 2

// node is a split when left > 0, a leaf holding the pump share otherwise.
type node struct {
	feature   Feature
	threshold float64
	left      int32
	right     int32
	prob      float64
}

// tree is stored flat; the root is nodes[0].
type tree []node

func (t tree) eval(x Vector) float64 {
	i := int32(0)
	for {
		n := &t[i]
		if n.left == 0 {
			return n.prob
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type builder struct {
	samples []Sample
	opts    Options
	rng     *rand.Rand
	nodes   tree
}

// grow appends the subtree for idx and returns its index.
func (b *builder) grow(idx []int, depth int) int32 {
	at := int32(len(b.nodes))
	pos := b.positives(idx)
	b.nodes = append(b.nodes, node{prob: float64(pos) / float64(len(idx))})

	if pos == 0 || pos == len(idx) || depth >= b.opts.MaxDepth || len(idx) < 2*b.opts.MinLeaf {
		return at
	}

	feature, threshold, ok := b.bestSplit(idx, b.rng.Perm(int(NumFeatures))[:mtry])
	if !ok {
		feature, threshold, ok = b.bestSplit(idx, []int{0, 1, 2, 3})
	}
	if !ok {
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.samples[i].X[feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at].feature = feature
	b.nodes[at].threshold = threshold
	b.nodes[at].left = l
	b.nodes[at].right = r
	return at
}

func (b *builder) positives(idx []int) int {
	n := 0
	for _, i := range idx {
		if b.samples[i].Pump {
			n++
		}
	}
	return n
}

// bestSplit finds the threshold over features with the lowest weighted Gini
// impurity. ok is false when no split lowers the impurity of idx.
func (b *builder) bestSplit(idx []int, features []int) (Feature, float64, bool) {
	type point struct {
		v   float64
		pos bool
	}
	total := len(idx)
	totalPos := b.positives(idx)
	best := gini(totalPos, total) * float64(total)

	var (
		bestFeature   Feature
		bestThreshold float64
		found         bool
		points        = make([]point, total)
	)
	for _, f := range features {
		for k, i := range idx {
			points[k] = point{b.samples[i].X[f], b.samples[i].Pump}
		}
		slices.SortFunc(points, func(x, y point) int { return cmp.Compare(x.v, y.v) })

		leftPos := 0
		for k := 1; k < total; k++ {
			if points[k-1].pos {
				leftPos++
			}
			if points[k].v == points[k-1].v || k < b.opts.MinLeaf || total-k < b.opts.MinLeaf {
				continue
			}
			score := gini(leftPos, k)*float64(k) + gini(totalPos-leftPos, total-k)*float64(total-k)
			if score < best-1e-12 {
				best = score
				bestFeature = Feature(f)
				bestThreshold = (points[k-1].v + points[k].v) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// gini is the impurity of a node with pos positives among n samples.
func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
