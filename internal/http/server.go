package custhttp

import (
	"context"
	"errors"
	"fmt"

	"github.com/polycast/relay/internal/configs"
	custerror "github.com/polycast/relay/internal/error"
	"github.com/polycast/relay/internal/logger"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"
)

type HttpServer struct {
	configs *configs.HttpConfigs
	app     *fiber.App
}

type ServerOptions struct {
	configs      *configs.HttpConfigs
	errorHandler fiber.ErrorHandler
	registration Registration
	middlewares  []interface{}
	templatePath string
}

type Registration func(app *fiber.App)

type ServerOptioner func(o *ServerOptions)

func WithGlobalConfigs(c *configs.HttpConfigs) ServerOptioner {
	return func(o *ServerOptions) {
		o.configs = c
	}
}

func WithErrorHandler(handler fiber.ErrorHandler) ServerOptioner {
	return func(o *ServerOptions) {
		o.errorHandler = handler
	}
}

func WithRegistration(registration Registration) ServerOptioner {
	return func(o *ServerOptions) {
		o.registration = registration
	}
}

func WithMiddleware(middlewares ...interface{}) ServerOptioner {
	return func(o *ServerOptions) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

func WithTemplatePath(path string) ServerOptioner {
	return func(o *ServerOptions) {
		o.templatePath = path
	}
}

func New(options ...ServerOptioner) *HttpServer {
	opts := &ServerOptions{}
	for _, option := range options {
		option(opts)
	}

	fiberConfigs := fiber.Config{
		AppName:               opts.configs.Name,
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	}
	if opts.errorHandler != nil {
		fiberConfigs.ErrorHandler = opts.errorHandler
	}
	if opts.templatePath != "" {
		fiberConfigs.Views = html.New(opts.templatePath, ".html")
	}

	app := fiber.New(fiberConfigs)
	for _, m := range opts.middlewares {
		app.Use(m)
	}
	if opts.registration != nil {
		opts.registration(app)
	}

	return &HttpServer{
		configs: opts.configs,
		app:     app,
	}
}

func (s *HttpServer) Name() string {
	return s.configs.Name
}

func (s *HttpServer) Start() error {
	addr := fmt.Sprintf(":%d", s.configs.Port)
	if s.configs.Tls.IsEnabled() {
		return s.app.ListenTLS(addr, s.configs.Tls.Cert, s.configs.Tls.Key)
	}
	return s.app.Listen(addr)
}

func (s *HttpServer) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func GlobalErrorHandler() fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var custError *custerror.CustomError
		if errors.As(err, &custError) {
			logger.SDebug("GlobalErrorHandler: request rejected",
				zap.String("path", ctx.Path()),
				zap.Error(err))
			return ctx.
				Status(toHttpStatus(custError.Code)).
				JSON(fiber.Map{"message": custError.Message})
		}

		var fiberError *fiber.Error
		if errors.As(err, &fiberError) {
			return ctx.
				Status(fiberError.Code).
				JSON(fiber.Map{"message": fiberError.Message})
		}

		logger.SError("GlobalErrorHandler: unexpected error",
			zap.String("path", ctx.Path()),
			zap.Error(err))
		return ctx.
			Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "internal server error"})
	}
}

func toHttpStatus(code uint32) int {
	switch code {
	case custerror.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case custerror.CodeNotFound:
		return fiber.StatusNotFound
	case custerror.CodeAlreadyExists:
		return fiber.StatusConflict
	case custerror.CodePermissionDenied:
		return fiber.StatusForbidden
	case custerror.CodeFailedPrecondition:
		return fiber.StatusPreconditionFailed
	case custerror.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func CommonPublicMiddlewares(configs *configs.HttpConfigs) []interface{} {
	return []interface{}{
		recover.New(),
		requestid.New(),
		cors.New(),
	}
}
