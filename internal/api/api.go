// Package api exposes the sync orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"campussync/internal/assert"
	"campussync/internal/credentials"
	"campussync/internal/model"
	"campussync/internal/store"
	"campussync/internal/syncjob"
	"campussync/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_start  = "start"
	report_status = "status"
)

// Syncer is implemented by syncjob.Orchestrator.
type Syncer interface {
	StartSync(ctx context.Context, userID string, portal model.Portal, forced bool) (syncjob.StartResult, error)
	GetStatus(ctx context.Context, userID string, portal model.Portal) (syncjob.Status, error)
	Cancel(userID string, portal model.Portal) bool
}

type Server struct {
	syncer Syncer
	tel    telemetry.API
}

func NewServer(syncer Syncer, tel telemetry.API) Server {
	assert.NotNil(syncer)
	assert.NotNil(tel)
	return Server{
		syncer: syncer,
		tel:    telemetry.NewScopedAPI("api", tel),
	}
}

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sync/{portal}", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/status", s.handleStatus)
		r.Post("/cancel", s.handleCancel)
	})

	return r
}

type startRequest struct {
	UserID string `json:"user_id"`
	Forced bool   `json:"forced"`
}

type startResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
}

type statusResponse struct {
	Running    bool       `json:"running"`
	HasData    bool       `json:"has_data"`
	LastSyncAt *time.Time `json:"last_sync_at"`
	// State is diagnostic, failure details stay in the service logs.
	State string `json:"state"`
}

type cancelRequest struct {
	UserID string `json:"user_id"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func portalParam(w http.ResponseWriter, r *http.Request) (model.Portal, bool) {
	portal, err := model.ParsePortal(chi.URLParam(r, "portal"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_portal")
		return "", false
	}
	return portal, true
}

func (s Server) handleStart(w http.ResponseWriter, r *http.Request) {
	portal, ok := portalParam(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return
	}

	res, err := s.syncer.StartSync(r.Context(), req.UserID, portal, req.Forced)
	switch {
	case errors.Is(err, store.ErrNoCredentials):
		writeError(w, http.StatusNotFound, "no_credentials")
		return
	case errors.Is(err, credentials.ErrNoSecret):
		writeError(w, http.StatusUnprocessableEntity, "invalid_credentials")
		return
	case err != nil:
		s.tel.ReportBroken(report_start, err, req.UserID, portal)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	code := http.StatusOK
	if res.Status == syncjob.StatusStarted {
		code = http.StatusAccepted
	}
	writeJSON(w, code, startResponse{Status: string(res.Status), JobID: res.JobID})
}

func (s Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	portal, ok := portalParam(w, r)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return
	}

	status, err := s.syncer.GetStatus(r.Context(), userID, portal)
	if err != nil {
		s.tel.ReportBroken(report_status, err, userID, portal)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Running:    status.Running,
		HasData:    status.HasData,
		LastSyncAt: status.LastSyncAt,
		State:      string(status.State),
	})
}

func (s Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	portal, ok := portalParam(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		Cancelled: s.syncer.Cancel(req.UserID, portal),
	})
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
