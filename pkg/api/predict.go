package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/itohio/fieldwatch/pkg/predict"
	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// trainLimit is how many of the newest irrigation readings a prediction
// trains on.
const trainLimit = 5000

// Prediction is the body of GET /api/v1/predict.
type Prediction struct {
	Pump        bool    `json:"pump"`
	Probability float64 `json:"probability"`
	Accuracy    float64 `json:"accuracy"`
	Samples     int     `json:"samples"`
}

// predict trains a forest on the stored irrigation readings and evaluates it
// for the humidity, ph, phosphorus and potassium query parameters.
func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	x, err := parseVector(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.List(r.Context(), store.Filter{Kind: telemetry.KindIrrigation, Limit: trainLimit})
	if err != nil {
		s.internalError(w, "list failed", err)
		return
	}
	reports := make([]telemetry.Report, len(records))
	for i, rec := range records {
		reports[i] = rec.Report
	}
	samples := predict.FromReports(reports)

	f, acc, err := predict.Fit(samples, 0.2, predict.DefaultOptions())
	if errors.Is(err, predict.ErrNoSamples) {
		writeError(w, http.StatusConflict, "not enough irrigation readings to train on")
		return
	}
	if err != nil {
		s.internalError(w, "training failed", err)
		return
	}

	p := f.Probability(x)
	writeJSON(w, http.StatusOK, Prediction{Pump: p >= 0.5, Probability: p, Accuracy: acc, Samples: len(samples)})
}

func parseVector(r *http.Request) (predict.Vector, error) {
	q := r.URL.Query()
	var x predict.Vector
	for _, f := range []predict.Feature{predict.Humidity, predict.PH} {
		name := predict.FeatureNames[f]
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			return x, errors.New("invalid " + name)
		}
		x[f] = v
	}
	for _, f := range []predict.Feature{predict.Phosphorus, predict.Potassium} {
		name := predict.FeatureNames[f]
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return x, errors.New("invalid " + name)
		}
		if b {
			x[f] = 1
		}
	}
	return x, nil
}
