package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cubedeploy/internal/deployer"
	"cubedeploy/internal/modelset"
	"cubedeploy/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	List(ctx context.Context) (modelset.Set, error)
	Get(ctx context.Context, name string) (string, error)
	Validate(name, text string) error
	Deploy(ctx context.Context, name, text string) (types.DeployResult, error)
	Delete(ctx context.Context, name string) (types.DeployResult, error)
	Resume(ctx context.Context, runID int64) (types.DeployResult, error)
	Runs(ctx context.Context, limit int) ([]types.Run, error)
	ClusterStatus(ctx context.Context) (types.ClusterStatus, error)
	ClusterLogs(ctx context.Context) ([]string, error)
	TestConnection(ctx context.Context) (string, error)
	Ready() bool
}

var _ Service = (*deployer.Deployer)(nil)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	h := &handlers{svc: svc}
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", h.listModels)
		r.Get("/models/{name}", h.getModel)
		r.Delete("/models/{name}", h.deleteModel)
		r.With(requireJSON).Post("/validate", h.validate)
		r.With(requireJSON).Post("/deploy", h.deploy)
		r.Get("/cluster/status", h.clusterStatus)
		r.Get("/cluster/logs", h.clusterLogs)
		r.Get("/test/sql", h.testSQL)
		r.Get("/runs", h.listRuns)
		r.Post("/runs/{id}/resume", h.resumeRun)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("manifest unreadable"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// requireJSON rejects POST bodies that are not JSON and caps their size.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

type handlers struct {
	svc Service
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// fail writes err with its mapped status.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		ev := zlog.Error().Err(err).Str("path", r.URL.Path)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Msg("request failed")
	}
	writeJSONError(w, status, err.Error())
}

// failPipeline is fail for deploy, delete and resume: the body also carries
// the steps that ran.
func failPipeline(w http.ResponseWriter, r *http.Request, res types.DeployResult, err error) {
	status := statusFor(err)
	if status >= 500 {
		zlog.Error().Err(err).Str("path", r.URL.Path).Int64("run", res.RunID).Msg("pipeline failed")
	}
	writeErrorBody(w, types.ErrorResponse{
		Message: err.Error(),
		Error:   err.Error(),
		Code:    status,
		RunID:   res.RunID,
		Steps:   res.Steps,
	})
}

// listModels godoc
// @Summary      List models
// @Description  Reloads the persisted manifest and returns every model.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/models [get]
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	set, err := h.svc.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, types.ModelsResponse{Success: true, Models: map[string]string(set)})
}

// getModel godoc
// @Summary      Get one model
// @Tags         models
// @Produce      json
// @Param        name  path      string  true  "Model name"
// @Success      200   {object}  types.ModelResponse
// @Failure      404   {object}  types.ErrorResponse
// @Router       /api/models/{name} [get]
func (h *handlers) getModel(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, types.ModelResponse{Success: true, Model: text})
}

// validate godoc
// @Summary      Validate model source
// @Description  Shallow marker, structure and syntax checks. A rejected model is a 200 with success=false.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.ValidateRequest  true  "Model source"
// @Success      200   {object}  types.MessageResponse
// @Router       /api/validate [post]
func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	var req types.ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Validate(req.ModelName, req.Code); err != nil {
		if deployer.IsValidation(err) {
			writeJSON(w, types.MessageResponse{Success: false, Message: err.Error()})
			return
		}
		fail(w, r, err)
		return
	}
	writeJSON(w, types.MessageResponse{Success: true, Message: "Model is valid"})
}

// deploy godoc
// @Summary      Deploy a model
// @Description  Stores the model, applies the manifest, restarts the workload, registers the mount when new and waits for the rollout.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.DeployRequest  true  "Model to deploy"
// @Success      200   {object}  types.DeployResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Router       /api/deploy [post]
func (h *handlers) deploy(w http.ResponseWriter, r *http.Request) {
	var req types.DeployRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelName == "" || strings.TrimSpace(req.Code) == "" {
		writeJSONError(w, http.StatusBadRequest, "modelName and code are required")
		return
	}
	ctx, cancel := pipelineContext(r)
	defer cancel()
	res, err := h.svc.Deploy(ctx, req.ModelName, req.Code)
	if err != nil {
		failPipeline(w, r, res, err)
		return
	}
	writeJSON(w, types.DeployResponse{Success: true, RunID: res.RunID, Steps: res.Steps, RolloutPending: res.RolloutPending})
}

// deleteModel godoc
// @Summary      Delete a model
// @Description  Removes the model from the manifest, applies it, drops its mount and restarts the workload. Deleting an absent model succeeds.
// @Tags         models
// @Produce      json
// @Param        name  path      string  true  "Model name"
// @Success      200   {object}  types.DeleteResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /api/models/{name} [delete]
func (h *handlers) deleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx, cancel := pipelineContext(r)
	defer cancel()
	res, err := h.svc.Delete(ctx, name)
	if err != nil {
		failPipeline(w, r, res, err)
		return
	}
	writeJSON(w, types.DeleteResponse{Success: true, Message: "Model " + name + " deleted", Steps: res.Steps})
}

// clusterStatus godoc
// @Summary      Workload status
// @Tags         cluster
// @Produce      json
// @Success      200  {object}  types.ClusterStatusResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/cluster/status [get]
func (h *handlers) clusterStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ClusterStatus(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, types.ClusterStatusResponse{Success: true, Status: st})
}

// clusterLogs godoc
// @Summary      Recent workload logs
// @Tags         cluster
// @Produce      json
// @Success      200  {object}  types.LogsResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/cluster/logs [get]
func (h *handlers) clusterLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.ClusterLogs(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, types.LogsResponse{Success: true, Logs: lines})
}

// testSQL godoc
// @Summary      SQL connectivity probe
// @Tags         cluster
// @Produce      json
// @Success      200  {object}  types.OutputResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/test/sql [get]
func (h *handlers) testSQL(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.TestConnection(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, types.OutputResponse{Success: true, Output: out})
}

// listRuns godoc
// @Summary      Recent pipeline runs
// @Tags         runs
// @Produce      json
// @Param        limit  query     int  false  "Maximum runs to return"
// @Success      200    {object}  types.RunsResponse
// @Router       /api/runs [get]
func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, types.RunsResponse{Success: true, Runs: runs})
}

// resumeRun godoc
// @Summary      Resume a failed run
// @Description  Re-runs the steps after the last one the run completed.
// @Tags         runs
// @Produce      json
// @Param        id  path      int  true  "Run id"
// @Success      200 {object}  types.DeployResponse
// @Failure      400 {object}  types.ErrorResponse
// @Failure      404 {object}  types.ErrorResponse
// @Router       /api/runs/{id}/resume [post]
func (h *handlers) resumeRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	ctx, cancel := pipelineContext(r)
	defer cancel()
	res, err := h.svc.Resume(ctx, id)
	if err != nil {
		failPipeline(w, r, res, err)
		return
	}
	writeJSON(w, types.DeployResponse{Success: true, RunID: res.RunID, Steps: res.Steps, RolloutPending: res.RolloutPending})
}
