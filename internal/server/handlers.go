package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/fixture"
	"github.com/koustreak/frameload/internal/load"
	"github.com/koustreak/frameload/internal/logger"
	"github.com/koustreak/frameload/internal/schema"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type constraintsResponse struct {
	Constraints []schema.Constraint `json:"constraints"`
}

type planResponse struct {
	Order  []string         `json:"order"`
	Levels [][]string       `json:"levels"`
	Tables []*planTableView `json:"tables"`
}

type planTableView struct {
	Table      string   `json:"table"`
	Level      int      `json:"level"`
	KeyColumns []string `json:"key_columns,omitempty"`
	Deferred   []string `json:"deferred,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConstraints lists the namespace's constraints; ?kind=foreign_key
// restricts the list to foreign keys.
func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	in := schema.New(s.db, s.opts.Namespace)

	var (
		cs  []schema.Constraint
		err error
	)
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
		cs, err = in.ListAllConstraints(r.Context())
	case string(schema.KindForeignKey):
		cs, err = in.ListForeignKeyConstraints(r.Context())
	default:
		err = errs.Newf(errs.ErrKindInvalidInput, "unsupported kind filter %q", kind)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, constraintsResponse{Constraints: cs})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	frames, err := s.readFixture(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := load.Plan(r.Context(), schema.New(s.db, s.opts.Namespace), frames)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := planResponse{Order: p.Order()}
	for _, level := range p.Levels() {
		names := make([]string, len(level))
		for i, t := range level {
			names[i] = t.Table
		}
		resp.Levels = append(resp.Levels, names)
	}
	for _, t := range p.Tables {
		resp.Tables = append(resp.Tables, &planTableView{
			Table:      t.Table,
			Level:      t.Level,
			KeyColumns: t.KeyColumns,
			Deferred:   t.SelfColumns,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	frames, err := s.readFixture(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var report *load.LoadReport
	if s.opts.Transactional {
		report, err = load.RunInTx(r.Context(), s.db, s.opts.Namespace, frames, s.opts.Load)
	} else {
		report, err = load.RunDirect(r.Context(), s.db, s.opts.Namespace, frames, s.opts.Load)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) readFixture(w http.ResponseWriter, r *http.Request) ([]load.Frame, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "fixture exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "read request body", err)
	}
	return fixture.Decode(bytes.NewReader(body))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{"status": status})
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput,
		errs.ErrKindCyclicDependency,
		errs.ErrKindDuplicateTempID,
		errs.ErrKindUnresolvedReference,
		errs.ErrKindInsertFailed,
		errs.ErrKindConstraintViolation:
		return http.StatusUnprocessableEntity
	case errs.ErrKindSchemaInconsistency:
		return http.StatusConflict
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
