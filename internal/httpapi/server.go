// Package httpapi is the RPC bridge: it exposes exactly four remote-callable
// operations (remove, remove-as-blob, initialize-model, model-info) to
// origin-validated callers, plus a read-only operational surface (models,
// status, health, metrics). It never mutates lifecycle or queue state
// directly; everything goes through the Service contract.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rembgd/internal/manager"
	"rembgd/internal/queue"
	"rembgd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	ModelInfo() types.ModelInfoResponse
	Initialize(ctx context.Context, modelID string) (bool, error)
	Remove(ctx context.Context, payload []byte, mime string) (queue.Result, error)
	Ready() bool
}

// NewMux builds the router. Origin policy, CORS, body limits and logging are
// configured through the package Set* functions before calling this.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	// The RPC surface: origin-validated, CORS-enabled.
	r.Route("/v1", func(v chi.Router) {
		v.Use(cors.Handler(corsOptions()))
		v.Use(requireAllowedOrigin)

		v.Post("/remove", handleRemove(svc))
		v.Post("/remove/blob", handleRemoveBlob(svc))
		v.Post("/models/initialize", handleInitialize(svc))
		v.Get("/models/info", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.ModelInfo())
		})
	})

	// Operational surface, same-origin only.
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleRemove is the encoded-string convenience variant: base64 (or data
// URL) in, base64 PNG out.
func handleRemove(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.RemoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		payload, mime, err := decodeImageField(req.Image)
		if err != nil {
			// Malformed encoding never reaches the queue.
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.MIME != "" {
			mime = req.MIME
		}

		start := time.Now()
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		res, err := svc.Remove(ctx, payload, mime)
		if err != nil {
			respondServiceError(w, r, "remove", err, start)
			return
		}
		logEnd(r, "remove", http.StatusOK, start, nil)
		writeJSON(w, http.StatusOK, types.RemoveResponse{
			Image:     encodeImage(res.Data),
			MIME:      "image/png",
			RequestID: res.RequestID,
		})
	}
}

// handleRemoveBlob is the binary-preserving variant: raw image bytes in,
// PNG bytes out. Recommended for large images to avoid base64 overhead.
func handleRemoveBlob(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(payload) == 0 {
			writeJSONError(w, http.StatusBadRequest, "empty image payload")
			return
		}
		mime := r.Header.Get("Content-Type")
		if i := strings.Index(mime, ";"); i >= 0 {
			mime = strings.TrimSpace(mime[:i])
		}
		if mime == "application/octet-stream" {
			// Let the runtime sniff the format.
			mime = ""
		}

		start := time.Now()
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		res, err := svc.Remove(ctx, payload, mime)
		if err != nil {
			respondServiceError(w, r, "remove_blob", err, start)
			return
		}
		logEnd(r, "remove_blob", http.StatusOK, start, nil)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Request-Id", res.RequestID)
		w.WriteHeader(http.StatusOK)
		w.Write(res.Data)
	}
}

// handleInitialize pre-warms a model. Safe to call repeatedly; an empty or
// absent body selects the capability default.
func handleInitialize(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.InitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		start := time.Now()
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		ok, err := svc.Initialize(ctx, req.Model)
		if err != nil {
			respondServiceError(w, r, "initialize", err, start)
			return
		}
		logEnd(r, "initialize", http.StatusOK, start, nil)
		writeJSON(w, http.StatusOK, types.InitializeResponse{
			Ready: ok,
			Model: svc.ModelInfo().Model,
		})
	}
}

// respondServiceError maps well-known service errors to HTTP status codes.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error, start time.Time) {
	// Client gone or server shutting down: nothing useful to write.
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		return
	}
	status := http.StatusInternalServerError
	switch {
	case manager.IsModelNotFound(err):
		status = http.StatusNotFound
	case queue.IsTooBusy(err):
		IncrementBackpressure("queue_full")
		status = http.StatusTooManyRequests
	case manager.IsInitFailed(err):
		status = http.StatusServiceUnavailable
	case queue.IsClosed(err):
		status = http.StatusServiceUnavailable
	case manager.IsInferenceFailed(err):
		status = http.StatusInternalServerError
	}
	logEnd(r, op, status, start, err)
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
