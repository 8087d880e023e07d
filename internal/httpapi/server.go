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

	"litertd/internal/bridge"
	"litertd/pkg/types"
)

// NewMux builds the HTTP routing surface over a Service.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Post("/v1/chat", func(w http.ResponseWriter, r *http.Request) { handleChat(svc, w, r) })
	r.Post("/v1/chat/stream", func(w http.ResponseWriter, r *http.Request) { handleChatStream(svc, w, r) })
	r.Post("/v1/chat/structured", func(w http.ResponseWriter, r *http.Request) { handleChatStructured(svc, w, r) })

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels(), Downloads: svc.Downloads()})
	})
	r.Post("/models/{name}/download", func(w http.ResponseWriter, r *http.Request) { handleDownload(svc, w, r) })
	r.Delete("/models/{name}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteModel(chi.URLParam(r, "name")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
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
		w.Write([]byte("shutting down"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// decodeJSONBody enforces the content type and body-size limit shared by the
// chat endpoints.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func validateMessages(w http.ResponseWriter, messages []types.Message) bool {
	if len(messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return false
	}
	return true
}

// logRequestEnd emits the structured end line for a chat request.
func logRequestEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo || zlog == nil {
		return
	}
	z := zlog.Info().Int("status", status).Dur("dur", time.Since(start)).Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("chat end")
}

func handleChat(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !validateMessages(w, req.Messages) {
		return
	}
	start := time.Now()
	lvl := requestLogLevel(r)
	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := svc.Chat(ctx, req)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		logRequestEnd(r, lvl, writeServiceError(w, err), start, err)
		return
	}
	logRequestEnd(r, lvl, http.StatusOK, start, nil)
	writeJSON(w, res)
}

// streamLine is one NDJSON record on /v1/chat/stream. Exactly one of the
// fields is set per line; the terminal line carries the finish reason.
type streamLine struct {
	Text         string `json:"text,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Error        string `json:"error,omitempty"`
}

func handleChatStream(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !validateMessages(w, req.Messages) {
		return
	}
	start := time.Now()
	lvl := requestLogLevel(r)
	ctx, cancel := requestContext(r)
	defer cancel()

	s, err := svc.OpenStream(ctx, req)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		logRequestEnd(r, lvl, writeServiceError(w, err), start, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	writer := io.Writer(w)
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{})
	}
	enc := json.NewEncoder(writer)

	status := http.StatusOK
	var streamErr error
	for {
		frag, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if encErr := enc.Encode(streamLine{Text: frag}); encErr != nil {
			logRequestEnd(r, lvl, status, start, encErr)
			return
		}
		if flush != nil {
			flush()
		}
	}
	line := streamLine{}
	switch {
	case streamErr == nil:
		line.FinishReason = types.FinishStop
	case bridge.IsAborted(streamErr), errors.Is(streamErr, context.Canceled):
		// Client gone: no terminal line will be read anyway.
		logRequestEnd(r, lvl, status, start, streamErr)
		return
	case errors.Is(streamErr, context.DeadlineExceeded):
		// The request deadline fired with the client still attached.
		line.FinishReason = types.FinishError
		line.Error = "generation deadline exceeded"
	default:
		line.FinishReason = types.FinishError
		line.Error = streamErr.Error()
	}
	if encErr := enc.Encode(line); encErr == nil && flush != nil {
		flush()
	}
	logRequestEnd(r, lvl, status, start, streamErr)
}

func handleChatStructured(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.StructuredRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !validateMessages(w, req.Messages) {
		return
	}
	if len(req.Schema) == 0 {
		writeJSONError(w, http.StatusBadRequest, "schema is required")
		return
	}
	start := time.Now()
	lvl := requestLogLevel(r)
	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := svc.ChatStructured(ctx, req)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		logRequestEnd(r, lvl, writeServiceError(w, err), start, err)
		return
	}
	logRequestEnd(r, lvl, http.StatusOK, start, nil)
	// Validation exhaustion travels in the body, not the status line.
	writeJSON(w, res)
}

// downloadRequest optionally registers a source URL with the download.
type downloadRequest struct {
	URL string `json:"url,omitempty"`
}

func handleDownload(svc Service, w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req downloadRequest
	if r.ContentLength > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.URL != "" {
		svc.RegisterModel(name, req.URL)
	}
	if err := svc.StartDownload(serverBaseCtx, name); err != nil {
		if errors.Is(err, errDownloadsDisabled) {
			writeServiceError(w, err)
			return
		}
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "downloading"})
}
