package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/config"
	"github.com/cryptoearn/cryptoearn/internal/middleware"
	"github.com/cryptoearn/cryptoearn/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	services *routes.Services
	logger   *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	return NewWithDeps(routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
}

// NewWithDeps is New with every collaborator supplied by the caller.
func NewWithDeps(d routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               d.Cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: !d.Cfg.IsDev(),
		ErrorHandler:          ErrorHandler(d.Logger),
	})

	services, err := routes.Setup(app, d)
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: d.Cfg, services: services, logger: d.Logger}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Services exposes the long-lived components wired by routes.Setup.
func (s *Server) Services() *routes.Services { return s.services }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then cancels pending settlements.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.app.ShutdownWithContext(ctx)
	settleErr := s.services.Withdrawals.Shutdown(ctx)
	return errors.Join(httpErr, settleErr)
}

// ErrorHandler renders failures as {"error", "code", "kind"}. Unexpected errors
// are logged and reported as an opaque internal error.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fe.Message,
				"code":  codeForStatus(fe.Code),
				"kind":  string(kindForStatus(fe.Code)),
			})
		}

		ae := apperr.From(err)
		if ae.Kind == apperr.KindInternal && logger != nil {
			logger.Error("unhandled error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", middleware.RequestIDFrom(c)),
				slog.Any("error", err),
			)
		}
		return c.Status(apperr.HTTPStatus(ae.Kind)).JSON(fiber.Map{
			"error": ae.Message,
			"code":  ae.Code,
			"kind":  string(ae.Kind),
		})
	}
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case fiber.StatusUnauthorized:
		return apperr.KindUnauthenticated
	case fiber.StatusForbidden:
		return apperr.KindForbidden
	case fiber.StatusNotFound:
		return apperr.KindNotFound
	case fiber.StatusTooManyRequests:
		return apperr.KindRateLimited
	}
	if status >= fiber.StatusInternalServerError {
		return apperr.KindInternal
	}
	return apperr.KindValidation
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "route_not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusConflict:
		return "duplicate_request"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusRequestEntityTooLarge:
		return "body_too_large"
	}
	if status >= fiber.StatusInternalServerError {
		return "internal"
	}
	return "bad_request"
}
