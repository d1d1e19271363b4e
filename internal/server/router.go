package server

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger    *logrus.Logger
	BodyLimit int
}

const (
	contextKeyRequestID = "_catalog_request_id"
	headerRequestID     = "X-Request-ID"
	defaultBodyLimit    = 1 << 20
)

// ErrorBody 是所有失败响应的 JSON 形状。
type ErrorBody struct {
	Error string `json:"error"`
}

// NewApp builds a Fiber application with request-id/recover middleware and
// structured error handling. Routes are registered by the caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     bodyLimit,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(requestContextMiddleware())
	app.Use(recover.New())

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID，写入 Locals 与响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set(headerRequestID, reqID)
		return c.Next()
	}
}

// errorHandler 统一渲染未被 handler 自行处理的错误。
// fiber 自身的错误（如未注册路由的 404）保留其状态码，其余一律 500。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		if status >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"action":     "request_error",
				"request_id": RequestID(c),
				"method":     c.Method(),
				"path":       c.Path(),
				"status":     status,
			}).WithError(err).Error("request failed")
		}
		return RenderError(c, status, err.Error())
	}
}

// RenderError 以 {"error": message} 写出失败响应。
func RenderError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorBody{Error: message})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
