package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/crm360hq/crm360/internal/auth"
)

// Handler registers routes on the echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Server wraps the echo instance with start/stop lifecycle.
type Server struct {
	echo *echo.Echo
	addr string
}

var jwtSkipExactPaths = map[string]struct{}{
	"/":           {},
	"/ping":       {},
	"/health":     {},
	"/auth/login": {},
}

var jwtSkipPrefixPaths = []string{
	"/webhooks/",
}

// New builds the echo server with logging, recovery, JWT auth, and request
// validation, then registers all handlers.
func New(addr, jwtSecret string, log *slog.Logger, handlers []Handler) *Server {
	if addr == "" {
		addr = ":8080"
	}
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}
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
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return shouldSkipJWT(c.Request().URL.Path)
	}))

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{echo: e, addr: addr}
}

// Start begins serving and blocks until shutdown.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func shouldSkipJWT(path string) bool {
	if _, ok := jwtSkipExactPaths[path]; ok {
		return true
	}
	for _, prefix := range jwtSkipPrefixPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
