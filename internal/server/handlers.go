package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/latency-space/porkchop/internal/bodies"
	"github.com/latency-space/porkchop/internal/ephemeris"
	"github.com/latency-space/porkchop/internal/porkchop"
)

// maxRequestBody caps POSTed request documents.
const maxRequestBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type bodiesResponse struct {
	Bodies []string `json:"bodies"`
}

// Cell addresses one grid cell.
type Cell struct {
	Departure int             `json:"departure"`
	Arrival   int             `json:"arrival"`
	Sample    porkchop.Sample `json:"sample"`
}

type porkchopResponse struct {
	*porkchop.Grid
	Best *Cell `json:"best,omitempty"`
}

func bestCell(g *porkchop.Grid) *Cell {
	i, j, ok := g.Best()
	if !ok {
		return nil
	}
	return &Cell{Departure: i, Arrival: j, Sample: g.At(i, j)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBodies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bodiesResponse{Bodies: bodies.Names()})
}

func (s *Server) handlePorkchop(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	grid, err := s.builder.Build(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTransfer(grid.Departure.Body, grid.Arrival.Body)
	}

	writeJSON(w, http.StatusOK, porkchopResponse{Grid: grid, Best: bestCell(grid)})
}

// decodeRequest reads a porkchop request from the query string (GET) or a
// JSON body (POST).
func decodeRequest(w http.ResponseWriter, r *http.Request) (porkchop.Request, error) {
	if r.Method == http.MethodPost {
		var req porkchop.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return porkchop.Request{}, &ephemeris.InvalidInputError{Field: "request", Reason: err.Error()}
		}
		return req, nil
	}

	q := r.URL.Query()
	req := porkchop.Request{
		DepartureBody:  q.Get("departureBody"),
		ArrivalBody:    q.Get("arrivalBody"),
		DepartureStart: q.Get("departureStart"),
		DepartureEnd:   q.Get("departureEnd"),
		ArrivalStart:   q.Get("arrivalStart"),
		ArrivalEnd:     q.Get("arrivalEnd"),
	}
	if raw := strings.TrimSpace(q.Get("resolution")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return porkchop.Request{}, &ephemeris.InvalidInputError{Field: "resolution", Reason: "must be an integer"}
		}
		req.Resolution = n
	}
	return req, nil
}

// statusFor maps builder errors to HTTP status codes.
func statusFor(err error) int {
	var (
		invalid  *ephemeris.InvalidInputError
		netErr   *ephemeris.NetworkError
		fmtErr   *ephemeris.FormatError
		emptyErr *ephemeris.EmptyResultError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &netErr), errors.As(err, &fmtErr), errors.As(err, &emptyErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Porkchop request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Info("Porkchop request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
