package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/itohio/fieldwatch/pkg/history"
	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type supplyListBody struct {
	Total int          `json:"total"`
	Items []supplyJSON `json:"items"`
}

func newSupplyFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemory(), history: history.New(time.Hour)}
	srv := New(f.store, f.history, nil, nil, nil).WithSupplies(f.store)
	srv.now = func() time.Time { return base }
	f.handler = srv.Router()

	for _, body := range []string{
		`{"name":"urea","type":"fertilizer","quantity":40,"expires":"2024-05-11"}`,
		`{"name":"corn seed","type":"seed","quantity":12,"expires":"2024-05-03"}`,
		`{"name":"npk","type":"fertilizer","quantity":8,"expires":"2024-08-01"}`,
	} {
		rec := f.do(t, http.MethodPost, "/api/v1/supplies", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return f
}

func TestSupplies_AddAndList(t *testing.T) {
	f := newSupplyFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/supplies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[supplyListBody](t, rec)
	require.Equal(t, 3, body.Total)
	assert.Equal(t, supplyJSON{ID: 2, Name: "corn seed", Type: "seed", Quantity: 12, Expires: "2024-05-03"}, body.Items[0])

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", `{"name":"urea","type":"fertilizer","quantity":1,"expires":"2024-06-01"}`, http.StatusConflict},
		{"bad date", `{"name":"lime","quantity":1,"expires":"01/06/2024"}`, http.StatusBadRequest},
		{"no name", `{"name":"","quantity":1,"expires":"2024-06-01"}`, http.StatusBadRequest},
		{"negative", `{"name":"lime","quantity":-1,"expires":"2024-06-01"}`, http.StatusBadRequest},
		{"unknown field", `{"name":"lime","qty":1,"expires":"2024-06-01"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.do(t, http.MethodPost, "/api/v1/supplies", tt.body).Code)
		})
	}
}

func TestSupplies_QuantityAndRemove(t *testing.T) {
	f := newSupplyFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/v1/supplies/corn%20seed", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(5), decode[map[string]any](t, rec)["quantity"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/v1/supplies/urea", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/v1/supplies/urea", `{"quantity":-2}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/api/v1/supplies/lime", `{"quantity":2}`).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/supplies/urea", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/v1/supplies/urea", "").Code)

	body := decode[supplyListBody](t, f.do(t, http.MethodGet, "/api/v1/supplies", ""))
	require.Equal(t, 2, body.Total)
	assert.Equal(t, 5, body.Items[0].Quantity)
}

func TestSupplies_Expiring(t *testing.T) {
	f := newSupplyFixture(t)

	tests := []struct {
		query string
		code  int
		want  []string
	}{
		{"", http.StatusOK, []string{"corn seed", "urea"}},
		{"days=2", http.StatusOK, []string{"corn seed"}},
		{"days=0", http.StatusOK, []string{}},
		{"from=2024-05-11&to=2024-08-01", http.StatusOK, []string{"urea", "npk"}},
		{"days=-1", http.StatusBadRequest, nil},
		{"days=x", http.StatusBadRequest, nil},
		{"from=2024-05-11", http.StatusBadRequest, nil},
		{"from=2024-06-01&to=2024-05-01", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/supplies/expiring?"+tt.query, "")
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.want == nil {
				return
			}
			got := []string{}
			for _, it := range decode[supplyListBody](t, rec).Items {
				got = append(got, it.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupplies_SummaryAndCSV(t *testing.T) {
	f := newSupplyFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/supplies/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []store.TypeSummary{
		{Type: "fertilizer", Items: 2, Quantity: 48},
		{Type: "seed", Items: 1, Quantity: 12},
	}, decode[map[string][]store.TypeSummary](t, rec)["types"])

	rec = f.do(t, http.MethodGet, "/api/v1/supplies.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "supplies.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(store.SupplyCSVHeader, ","), lines[0])
	assert.Equal(t, "2,corn seed,seed,12,2024-05-03", lines[1])
}

func TestSupplies_NotServedWithoutInventory(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/supplies", "").Code)
}

func TestPredict(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/predict?humidity=20&ph=6.5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx := context.Background()
	for h := 0; h <= 100; h += 5 {
		for _, nutrients := range []bool{false, true} {
			r := telemetry.Report{
				Kind:       telemetry.KindIrrigation,
				Time:       base,
				Humidity:   float32(h),
				PH:         6.5,
				Phosphorus: nutrients,
				Potassium:  nutrients,
				Pump:       h < 50 && nutrients,
			}
			for range 3 {
				require.NoError(t, f.store.Insert(ctx, &store.Record{Report: r}))
			}
		}
	}

	tests := []struct {
		query string
		want  bool
	}{
		{"humidity=20&ph=6.5&phosphorus=true&potassium=true", true},
		{"humidity=85&ph=6.5&phosphorus=true&potassium=true", false},
		{"humidity=20&ph=6.5", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/predict?"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			p := decode[Prediction](t, rec)
			assert.Equal(t, tt.want, p.Pump)
			assert.Equal(t, 2+21*2*3, p.Samples)
			assert.GreaterOrEqual(t, p.Accuracy, 0.8)
		})
	}

	for _, q := range []string{"ph=6.5", "humidity=x&ph=6", "humidity=20&ph=6&potassium=maybe"} {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/predict?"+q, "").Code, q)
	}
}

func TestPredict_NoReadings(t *testing.T) {
	f := &fixture{store: store.NewMemory(), history: history.New(time.Hour)}
	f.handler = New(f.store, f.history, nil, nil, nil).Router()

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/predict?humidity=%d&ph=%g", 20, 6.5), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
