package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/leadwireai/leadwire/internal/analytics"
	"github.com/leadwireai/leadwire/internal/config"
)

type datastore interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type errorSource interface {
	Recent() []analytics.LoggedError
}

var countedTables = []string{"leads", "sessions", "transcript_entries", "usage_records"}

// DiagnosticsHandler exposes unauthenticated operational probes:
// process health, configuration presence, datastore reachability and
// the recent-error ring. Responses carry no secrets.
type DiagnosticsHandler struct {
	logger  *slog.Logger
	cfg     config.Config
	db      datastore
	errors  errorSource
	started time.Time
}

func NewDiagnosticsHandler(log *slog.Logger, cfg config.Config, db datastore, errors errorSource) *DiagnosticsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DiagnosticsHandler{
		logger:  log.With(slog.String("handler", "diagnostics")),
		cfg:     cfg,
		db:      db,
		errors:  errors,
		started: time.Now().UTC(),
	}
}

func (h *DiagnosticsHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/diagnostics")
	g.GET("/config", h.Config)
	g.GET("/datastore", h.Datastore)
	g.GET("/errors", h.Errors)
}

func (h *DiagnosticsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// Config reports which subsystems are configured without echoing any
// credential material.
func (h *DiagnosticsHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"completion_configured":       h.cfg.Completion.APIKey != "",
		"whatsapp_send_configured":    h.cfg.WhatsApp.SendConfigured(),
		"whatsapp_webhook_configured": h.cfg.WhatsApp.AppSecret != "" && h.cfg.WhatsApp.VerifyToken != "",
		"auth_enabled":                h.cfg.Auth.JWTSecret != "",
		"knowledge_configured":        h.cfg.Knowledge.Path != "",
		"dispatch_mode":               h.cfg.Dispatch.Mode,
		"export_scheduled":            h.cfg.Export.Cron != "",
	})
}

func (h *DiagnosticsHandler) Datastore(c echo.Context) error {
	if h.db == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "datastore is not configured")
	}
	ctx := c.Request().Context()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("datastore ping", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "datastore unreachable")
	}
	rows := make(map[string]int64, len(countedTables))
	for _, table := range countedTables {
		var n int64
		if err := h.db.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			h.logger.Warn("count table", slog.String("table", table), slog.Any("error", err))
			continue
		}
		rows[table] = n
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"rows":   rows,
	})
}

// Errors returns the recent-error ring, newest first.
func (h *DiagnosticsHandler) Errors(c echo.Context) error {
	recent := []analytics.LoggedError{}
	if h.errors != nil {
		if r := h.errors.Recent(); r != nil {
			recent = r
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"errors": recent,
	})
}
