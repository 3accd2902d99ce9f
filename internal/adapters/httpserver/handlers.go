package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_toolkit/internal/domain"
	"review_toolkit/internal/registry"
)

// Handlers exposes the operator catalog over HTTP: a dashboard front-end
// lists the schemas, renders its forms from them and posts invocations back.
type Handlers struct{ Reg *registry.Registry }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/operators", h.listOperators)
	s.mux.Post("/v1/operators/{name}", h.invoke)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

type operatorView struct {
	Name    string               `json:"name"`
	Summary string               `json:"summary"`
	Params  []registry.ParamSpec `json:"params"`
}

func (h *Handlers) listOperators(w http.ResponseWriter, r *http.Request) {
	ops := h.Reg.Operators()
	out := make([]operatorView, 0, len(ops))
	for _, op := range ops {
		out = append(out, operatorView{Name: op.Name, Summary: op.Summary, Params: op.Params})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var values map[string]string
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a JSON object of string parameters")
			return
		}
	}

	res, err := h.Reg.Invoke(r.Context(), name, values)
	if err != nil {
		status, title := errStatus(err)
		writeProblem(w, status, title, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// errStatus maps the error taxonomy onto HTTP statuses.
func errStatus(err error) (int, string) {
	var (
		missing *domain.MissingParameterError
		invalid *domain.InvalidParameterError
		source  *domain.SourceUnavailableError
	)
	switch {
	case errors.Is(err, domain.ErrUnknownOperator):
		return http.StatusNotFound, "Unknown operator"
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, "Missing parameter"
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "Invalid parameter"
	case errors.Is(err, domain.ErrSchemaMismatch):
		return http.StatusBadRequest, "Schema mismatch"
	case errors.As(err, &source):
		return http.StatusBadGateway, "Source unavailable"
	default:
		return http.StatusInternalServerError, "Operator failed"
	}
}
