package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/itohio/fieldwatch/pkg/store"
)

// WithSupplies serves the supply inventory from sup.
func (s *Server) WithSupplies(sup store.Supplies) *Server {
	s.supplies = sup
	return s
}

// supplyJSON is a supply on the wire; expires is YYYY-MM-DD.
type supplyJSON struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Expires  string `json:"expires"`
}

func toJSON(sp store.Supply) supplyJSON {
	return supplyJSON{
		ID:       sp.ID,
		Name:     sp.Name,
		Type:     sp.Type,
		Quantity: sp.Quantity,
		Expires:  sp.Expires.Format(store.DateLayout),
	}
}

func supplyList(supplies []store.Supply) map[string]any {
	items := make([]supplyJSON, len(supplies))
	for i, sp := range supplies {
		items[i] = toJSON(sp)
	}
	return map[string]any{"total": len(items), "items": items}
}

func (s *Server) supplyRoutes(api *mux.Router) {
	api.Handle("/supplies", s.wrap("/api/v1/supplies", s.listSupplies)).Methods(http.MethodGet)
	api.Handle("/supplies", s.wrap("/api/v1/supplies", s.addSupply)).Methods(http.MethodPost)
	api.Handle("/supplies.csv", s.wrap("/api/v1/supplies.csv", s.exportSupplies)).Methods(http.MethodGet)
	api.Handle("/supplies/expiring", s.wrap("/api/v1/supplies/expiring", s.expiringSupplies)).Methods(http.MethodGet)
	api.Handle("/supplies/summary", s.wrap("/api/v1/supplies/summary", s.supplySummary)).Methods(http.MethodGet)
	api.Handle("/supplies/{name}", s.wrap("/api/v1/supplies/name", s.patchSupply)).Methods(http.MethodPatch)
	api.Handle("/supplies/{name}", s.wrap("/api/v1/supplies/name", s.deleteSupply)).Methods(http.MethodDelete)
}

func (s *Server) listSupplies(w http.ResponseWriter, r *http.Request) {
	supplies, err := s.supplies.ListSupplies(r.Context())
	if err != nil {
		s.internalError(w, "list supplies failed", err)
		return
	}
	writeJSON(w, http.StatusOK, supplyList(supplies))
}

func (s *Server) addSupply(w http.ResponseWriter, r *http.Request) {
	var req supplyJSON
	if !decodeBody(w, r, &req) {
		return
	}
	expires, err := store.ParseDate(req.Expires)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sp := store.Supply{Name: req.Name, Type: req.Type, Quantity: req.Quantity, Expires: expires}
	if err := s.supplies.AddSupply(r.Context(), &sp); err != nil {
		s.supplyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJSON(sp))
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) patchSupply(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	name := mux.Vars(r)["name"]
	if err := s.supplies.SetQuantity(r.Context(), name, *req.Quantity); err != nil {
		s.supplyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "quantity": *req.Quantity})
}

func (s *Server) deleteSupply(w http.ResponseWriter, r *http.Request) {
	if err := s.supplies.RemoveSupply(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.supplyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// expiringSupplies takes either days (from today) or from and to dates.
func (s *Server) expiringSupplies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		supplies []store.Supply
		err      error
	)
	switch {
	case q.Get("from") != "" || q.Get("to") != "":
		from, ferr := store.ParseDate(q.Get("from"))
		to, terr := store.ParseDate(q.Get("to"))
		if err := errors.Join(ferr, terr); err != nil {
			writeError(w, http.StatusBadRequest, "from and to must both be YYYY-MM-DD dates")
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "to must not be before from")
			return
		}
		supplies, err = s.supplies.Expiring(r.Context(), from, to)
	default:
		days := 30
		if v := q.Get("days"); v != "" {
			days, err = strconv.Atoi(v)
			if err != nil || days < 0 {
				writeError(w, http.StatusBadRequest, "invalid days")
				return
			}
		}
		supplies, err = store.ExpiringWithin(r.Context(), s.supplies, s.now(), days)
	}
	if err != nil {
		s.internalError(w, "expiring supplies failed", err)
		return
	}
	writeJSON(w, http.StatusOK, supplyList(supplies))
}

func (s *Server) supplySummary(w http.ResponseWriter, r *http.Request) {
	supplies, err := s.supplies.ListSupplies(r.Context())
	if err != nil {
		s.internalError(w, "list supplies failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": store.Summarize(supplies)})
}

func (s *Server) exportSupplies(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := store.ExportSuppliesCSV(r.Context(), s.supplies, &buf); err != nil {
		s.internalError(w, "supply export failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="supplies.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) supplyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.storeError(w, err)
	}
}

// decodeBody reads a JSON body with no unknown fields into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
