package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/avsync/internal/action"
	"github.com/dgnsrekt/avsync/internal/coordinator"
	"github.com/dgnsrekt/avsync/internal/relay"
	"github.com/dgnsrekt/avsync/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the coordinator surface exposed over HTTP.
type Service interface {
	Dispatch(ctx context.Context, msg types.Message, sender types.Sender) (any, error)
	Toggle(ctx context.Context) error
	ActionClicked(ctx context.Context) error
	Snapshot() coordinator.Snapshot
	Links() []string
	OpenLink(ctx context.Context, name string) error
}

// ToolbarState reports the toolbar button's current look.
type ToolbarState interface {
	State() action.State
}

// Deps wires the server. Tabs resolves tab_id on inbound messages; Broker
// may be nil, in which case the event stream is not mounted.
type Deps struct {
	Service Service
	Tabs    types.TabInfoProvider
	Toolbar ToolbarState
	Broker  *relay.Broker
	Version string
}

func NewServer(deps Deps) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	version := deps.Version
	if version == "" {
		version = "dev"
	}
	cfg := huma.DefaultConfig("A/V Sync Coordinator API", version)
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		page, err := renderDocs(api.OpenAPI(), deps.Broker != nil)
		if err != nil {
			slog.Error("render docs failed", "error", err)
			http.Error(w, "docs unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(page); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if deps.Broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(deps.Broker))
	}

	registerHealthHandlers(api)
	registerMessageHandlers(api, deps.Service, deps.Tabs)
	registerModeHandlers(api, deps.Service, deps.Toolbar)
	registerLinkHandlers(api, deps.Service)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case types.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case types.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case types.CodeNoResponse:
			return huma.Error504GatewayTimeout(coded.Message)
		case types.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

// requestLogger logs each request. The long-lived event stream and health
// probes are logged at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if r.URL.Path == "/health" || strings.HasSuffix(r.URL.Path, "/events") {
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
