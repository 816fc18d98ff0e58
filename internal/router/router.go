package router

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"imagevault/internal/config"
	"imagevault/internal/errors"
	"imagevault/internal/handler"
	"imagevault/internal/logging"
	"imagevault/internal/observability"
)

// BodyLimit caps request bodies, uploads included.
const BodyLimit = "10M"

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies are the cross-cutting collaborators of the router.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Health  HealthChecker
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	deps Dependencies,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	imageHandler *handler.ImageHandler,
) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.HTTPErrorHandler = errorHandler(e, logger)
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(BodyLimit))
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	e.Validator = handler.NewValidator()

	e.GET("/healthz", healthz(deps.Health))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/v1")

	// Public routes
	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)
	user.POST("/forgot-password", authHandler.ForgotPassword)
	user.POST("/reset-password", authHandler.ResetPassword)

	// Secured routes (require JWT authentication)
	secured := echojwt.WithConfig(echojwt.Config{
		SigningKey:   []byte(cfg.JWTSecret),
		TokenLookup:  "header:" + echo.HeaderAuthorization + ":Bearer ",
		ErrorHandler: unauthorized,
	})

	user.GET("/me", userHandler.Me, secured)

	image := api.Group("/image", secured)
	image.GET("", imageHandler.ListByDate)
	image.GET("/", imageHandler.ListByDate)
	image.GET("/search", imageHandler.Search)
	image.GET("/sort/:order", imageHandler.SortAll)
	image.POST("/upload", imageHandler.Upload)
	image.POST("/upload_multi", imageHandler.UploadMany)
	image.GET("/:filename", imageHandler.Get)
	image.PUT("/:filename", imageHandler.Change)
	image.DELETE("/:filename", imageHandler.Delete)
}

func unauthorized(_ echo.Context, err error) error {
	return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
		Error: "missing or invalid bearer token",
		Code:  errors.CodeInvalidToken,
	}).SetInternal(err)
}

func healthz(checker HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			// Redis is a cache, so an outage degrades but does not fail the check.
			if err := checker.Ping(ctx); err != nil {
				return c.JSON(http.StatusOK, echo.Map{"status": "degraded", "cache": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}

// errorHandler maps domain errors that reach echo unconverted and logs
// server side failures with their oops context.
func errorHandler(e *echo.Echo, logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !stderrors.As(err, &he) {
			mapped := errors.MapErrorToHTTP(err)
			he = echo.NewHTTPError(mapped.StatusCode, mapped.ToErrorResponse()).SetInternal(err)
		}
		if he.Code >= http.StatusInternalServerError {
			cause := err
			if he.Internal != nil {
				cause = he.Internal
			}
			logging.LogError(c.Request().Context(), logger, "request failed", cause)
		}
		e.DefaultHTTPErrorHandler(he, c)
	}
}

// requestContext exposes the request id to loggers further down the call chain.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.ContextWithRequestID(req.Context(), id)))
		return next(c)
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	})
}
