package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tourist-overwatch/api/middleware"
	"tourist-overwatch/api/services"
	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/services/dataset"
	"tourist-overwatch/pkg/services/tracking"
	"tourist-overwatch/pkg/shared"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// HealthCheckFunc reports whether a backing component is usable.
type HealthCheckFunc func() error

type Handlers struct {
	engine  *tracking.Engine
	paths   *dataset.Dataset
	users   *services.UserService
	archive *services.AlertArchiveService
	auth    *middleware.Auth
	started time.Time
}

func NewHandlers(engine *tracking.Engine, paths *dataset.Dataset, users *services.UserService,
	archive *services.AlertArchiveService, tokens middleware.TokenVerifier) *Handlers {
	return &Handlers{
		engine:  engine,
		paths:   paths,
		users:   users,
		archive: archive,
		auth:    middleware.NewAuth(tokens),
		started: time.Now(),
	}
}

// Auth handlers
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req ontology.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	user, err := h.users.Register(&req)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			sendError(w, http.StatusConflict, "USER_EXISTS", err.Error())
		} else {
			sendDomainError(w, "REGISTER_FAILED", err)
		}
		return
	}

	sendSuccess(w, http.StatusCreated, user)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req ontology.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.users.Login(&req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			sendError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
		} else {
			sendError(w, http.StatusInternalServerError, "LOGIN_FAILED", err.Error())
		}
		return
	}

	sendSuccess(w, http.StatusOK, resp)
}

// Tourist and path handlers
func (h *Handlers) ListTourists(w http.ResponseWriter, r *http.Request) {
	dir, err := h.engine.TouristIDs()
	if err != nil {
		sendDomainError(w, "LIST_FAILED", err)
		return
	}

	sendSuccess(w, http.StatusOK, dir)
}

func (h *Handlers) StartPath(w http.ResponseWriter, r *http.Request) {
	touristID := r.PathValue("id")
	pathType := ontology.PathType(r.URL.Query().Get("type"))
	user := middleware.Username(r.Context())

	path, err := h.engine.StartPath(touristID, pathType, user)
	if err != nil {
		sendDomainError(w, "START_PATH_FAILED", err)
		return
	}

	sendSuccess(w, http.StatusOK, path)
}

func (h *Handlers) PathGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := h.paths.GeoJSON(r.PathValue("id"))
	if err != nil {
		sendDomainError(w, "GEOJSON_FAILED", err)
		return
	}

	sendSuccess(w, http.StatusOK, fc)
}

func (h *Handlers) TouristLogs(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, h.engine.GetLog(r.PathValue("id")))
}

func (h *Handlers) Statuses(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, h.engine.GetAllSnapshots())
}

// Live update handlers
func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req ontology.UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.engine.UpdateLocation(req.TouristID, req.Lat, req.Lon, req.Status); err != nil {
		sendDomainError(w, "UPDATE_FAILED", err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]string{"status": "location updated"})
}

func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var req ontology.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	pred, err := h.engine.Predict(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			// client went away; the state change is already committed
			logger.Debug("Prediction acknowledgment abandoned", zap.String("tourist_id", req.TouristID))
			return
		}
		sendDomainError(w, "PREDICTION_FAILED", err)
		return
	}

	sendSuccess(w, http.StatusOK, pred)
}

func (h *Handlers) RaiseSOS(w http.ResponseWriter, r *http.Request) {
	var req ontology.SOSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	alert, err := h.engine.RaiseSOS(req.TouristID, req.Lat, req.Lon)
	if err != nil {
		sendDomainError(w, "SOS_FAILED", err)
		return
	}

	sendSuccess(w, http.StatusCreated, alert)
}

func (h *Handlers) ResolveSOS(w http.ResponseWriter, r *http.Request) {
	var req ontology.ResolveSOSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.engine.ResolveSOS(req.TouristID); err != nil {
		sendDomainError(w, "RESOLVE_FAILED", err)
		return
	}

	logger.Info("SOS resolved",
		zap.String("tourist_id", req.TouristID),
		zap.String("resolved_by", middleware.Username(r.Context())),
	)
	sendSuccess(w, http.StatusOK, map[string]string{"status": "sos resolved"})
}

// Alert handlers
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, h.engine.Alerts())
}

func (h *Handlers) ClearAlerts(w http.ResponseWriter, r *http.Request) {
	cleared := h.engine.ClearAlerts()
	sendSuccess(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (h *Handlers) AlertHistory(w http.ResponseWriter, r *http.Request) {
	limit := services.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			sendError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := h.archive.Recent(limit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "HISTORY_FAILED", err.Error())
		return
	}

	sendSuccess(w, http.StatusOK, alerts)
}

func (h *Handlers) Heatmap(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, h.engine.Heatmap())
}

func (h *Handlers) ResetSimulation(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	logger.Info("Simulation reset", zap.String("requested_by", middleware.Username(r.Context())))
	sendSuccess(w, http.StatusOK, map[string]string{"status": "simulation reset"})
}

// Health check
func (h *Handlers) HealthCheck(checks map[string]HealthCheckFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := shared.HealthStatus{
			Status:    "healthy",
			Service:   shared.ServiceName,
			Uptime:    time.Since(h.started),
			Timestamp: time.Now(),
			Details:   make(map[string]string),
		}

		for name, check := range checks {
			if err := check(); err != nil {
				health.Status = "unhealthy"
				health.Details[name] = "unhealthy: " + err.Error()
			} else {
				health.Details[name] = "healthy"
			}
		}

		// the engine degrades rather than fails without a dataset
		if err := h.paths.Err(); err != nil {
			health.Details["dataset"] = "unavailable: " + err.Error()
		} else {
			health.Details["dataset"] = "healthy"
		}

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		sendSuccess(w, statusCode, health)
	}
}

// Helper functions
func sendSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: true,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

func sendError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// sendDomainError maps the shared sentinel errors onto HTTP status codes.
func sendDomainError(w http.ResponseWriter, fallbackCode string, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		sendError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, shared.ErrTypeMismatch):
		sendError(w, http.StatusBadRequest, "PATH_TYPE_MISMATCH", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		sendError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, shared.ErrUnavailable):
		sendError(w, http.StatusServiceUnavailable, "DATASET_UNAVAILABLE", err.Error())
	default:
		logger.Error("Request failed", zap.String("code", fallbackCode), zap.Error(err))
		sendError(w, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

// RegisterRoutes sets up all API routes
func (h *Handlers) RegisterRoutes(mux *http.ServeMux, checks map[string]HealthCheckFunc) {
	// Health check (no auth required)
	mux.HandleFunc("GET /health", h.HealthCheck(checks))

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)

	// Tourists and paths
	mux.HandleFunc("GET /api/v1/tourists", h.ListTourists)
	mux.HandleFunc("GET /api/v1/tourists/{id}/logs", h.TouristLogs)
	mux.HandleFunc("GET /api/v1/paths/{id}", h.auth.OptionalAuth(h.StartPath))
	mux.HandleFunc("GET /api/v1/paths/{id}/geojson", h.PathGeoJSON)
	mux.HandleFunc("GET /api/v1/statuses", h.Statuses)

	// Live updates
	mux.HandleFunc("POST /api/v1/locations", h.UpdateLocation)
	mux.HandleFunc("POST /api/v1/predictions", h.Predict)
	mux.HandleFunc("POST /api/v1/sos", h.RaiseSOS)
	mux.HandleFunc("POST /api/v1/sos/resolve", h.auth.BearerAuth(h.ResolveSOS))

	// Alerts and heatmap
	mux.HandleFunc("GET /api/v1/alerts", h.ListAlerts)
	mux.HandleFunc("DELETE /api/v1/alerts", h.auth.BearerAuth(h.ClearAlerts))
	mux.HandleFunc("GET /api/v1/alerts/history", h.auth.BearerAuth(h.AlertHistory))
	mux.HandleFunc("GET /api/v1/heatmap", h.Heatmap)

	// Simulation control
	mux.HandleFunc("POST /api/v1/simulation/reset", h.auth.BearerAuth(h.ResetSimulation))
}
