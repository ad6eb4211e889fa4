// Package predict learns when the irrigation pump should run from stored
// irrigation readings. The model is a random forest of CART classification
// trees over humidity, pH, phosphorus and potassium.
package predict

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// Feature indexes a sample's inputs.
type Feature int

const (
	Humidity Feature = iota
	PH
	Phosphorus
	Potassium
	NumFeatures
)

// FeatureNames are the column names of the features, in order.
var FeatureNames = [NumFeatures]string{"humidity", "ph", "phosphorus", "potassium"}

// ErrNoSamples is returned when there is nothing to train on.
var ErrNoSamples = errors.New("no irrigation samples to train on")

// Vector is one input to the model.
type Vector [NumFeatures]float64

// NewVector builds the model input for one set of readings.
func NewVector(humidity, ph float64, phosphorus, potassium bool) Vector {
	return Vector{humidity, ph, flag(phosphorus), flag(potassium)}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Sample is a labelled input: whether the pump ran for X.
type Sample struct {
	X    Vector
	Pump bool
}

// FromReports keeps the irrigation reports with a valid humidity.
func FromReports(reports []telemetry.Report) []Sample {
	var out []Sample
	for _, r := range reports {
		if r.Kind != telemetry.KindIrrigation || math32.IsNaN(r.Humidity) {
			continue
		}
		out = append(out, Sample{
			X:    NewVector(float64(r.Humidity), float64(r.PH), r.Phosphorus, r.Potassium),
			Pump: r.Pump,
		})
	}
	return out
}

// Options tune training.
type Options struct {
	Trees    int
	MaxDepth int
	// MinLeaf is the smallest number of samples a split may leave on a side.
	MinLeaf int
	Seed    uint64
}

// DefaultOptions returns the options used by the CLI and the API.
func DefaultOptions() Options {
	return Options{Trees: 25, MaxDepth: 8, MinLeaf: 1, Seed: 1}
}

func (o Options) validate() error {
	switch {
	case o.Trees < 1:
		return fmt.Errorf("trees must be positive, got %d", o.Trees)
	case o.MaxDepth < 1:
		return fmt.Errorf("max depth must be positive, got %d", o.MaxDepth)
	case o.MinLeaf < 1:
		return fmt.Errorf("min leaf must be positive, got %d", o.MinLeaf)
	}
	return nil
}

// Forest is a trained model. It is read-only and safe for concurrent use.
type Forest struct {
	trees []tree
}

// Train grows opts.Trees trees, each on a bootstrap resample of samples.
func Train(samples []Sample, opts Options) (*Forest, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	f := &Forest{trees: make([]tree, opts.Trees)}
	idx := make([]int, len(samples))
	for i := range f.trees {
		for j := range idx {
			idx[j] = rng.IntN(len(samples))
		}
		b := builder{samples: samples, opts: opts, rng: rng}
		b.grow(idx, 0)
		f.trees[i] = b.nodes
	}
	return f, nil
}

// Probability is the share of trees voting for the pump, weighted by each
// leaf's purity.
func (f *Forest) Probability(x Vector) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.eval(x)
	}
	return sum / float64(len(f.trees))
}

// Predict reports whether the pump should run for x.
func (f *Forest) Predict(x Vector) bool {
	return f.Probability(x) >= 0.5
}

// Score is the accuracy of the forest on samples, 0 when samples is empty.
func (f *Forest) Score(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	hits := 0
	for _, s := range samples {
		if f.Predict(s.X) == s.Pump {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

// Split shuffles samples with seed and holds back testFraction of them.
func Split(samples []Sample, testFraction float64, seed uint64) (train, test []Sample, err error) {
	if testFraction < 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in [0, 1), got %g", testFraction)
	}
	shuffled := slices.Clone(samples)
	rng := rand.New(rand.NewPCG(seed, ^seed))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := int(float64(len(shuffled))*testFraction + 0.5)
	return shuffled[n:], shuffled[:n], nil
}

// Fit trains on the samples not held back by Split and returns the accuracy
// on the held back ones. Without a test set the training accuracy is
// returned.
func Fit(samples []Sample, testFraction float64, opts Options) (*Forest, float64, error) {
	train, test, err := Split(samples, testFraction, opts.Seed)
	if err != nil {
		return nil, 0, err
	}
	f, err := Train(train, opts)
	if err != nil {
		return nil, 0, err
	}
	if len(test) == 0 {
		test = train
	}
	return f, f.Score(test), nil
}
