// Package server assembles the HTTP surface: middleware, auth, the
// fault-aware error handler and route registration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/leadwireai/leadwire/internal/auth"
	"github.com/leadwireai/leadwire/internal/faults"
	"github.com/leadwireai/leadwire/internal/handlers"
)

// Handler registers routes on the echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

type Server struct {
	echo *echo.Echo
	addr string
}

// Unauthenticated routes: probes, diagnostics and the channel webhooks,
// which carry their own signature check.
var (
	jwtExactSkipPaths = map[string]struct{}{
		"/ping":   {},
		"/health": {},
	}
	jwtPrefixSkipPaths = []string{
		"/diagnostics",
		"/channels/",
	}
)

func shouldSkipJWT(path string) bool {
	if _, ok := jwtExactSkipPaths[path]; ok {
		return true
	}
	for _, prefix := range jwtPrefixSkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// NewServer builds the echo instance and registers every handler. JWT
// auth is enforced only when a secret is configured.
func NewServer(log *slog.Logger, addr, jwtSecret string, handlerList ...Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = errorHandler(log.With(slog.String("component", "http")))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	if jwtSecret != "" {
		e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
			return shouldSkipJWT(c.Request().URL.Path)
		}))
	}

	for _, h := range handlerList {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{echo: e, addr: addr}
}

// errorHandler maps taxonomy faults and echo errors onto a stable
// {"error": message} body.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"
		var he *echo.HTTPError
		var fe *faults.Error
		switch {
		case errors.As(err, &he):
			status = he.Code
			message = fmt.Sprintf("%v", he.Message)
		case errors.As(err, &fe):
			status = fe.Status
			message = fe.Message
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Any("error", err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]string{"error": message})
	}
}

func (s *Server) Start() error { return s.echo.Start(s.addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

// Echo exposes the router, for tests and for late route additions.
func (s *Server) Echo() *echo.Echo { return s.echo }
