package proxy

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/catalog-hub/catalog-hub/internal/server"
	"github.com/catalog-hub/catalog-hub/internal/userstore"
)

const errorCodeNotFound = "not_found"

func (h *Handler) readUserRecord(c fiber.Ctx) error {
	started := time.Now()
	field, err := userstore.ParseField(c.Params("field"))
	if err != nil {
		return h.userError(c, "read", started, err)
	}

	blob, err := h.users.Read(requestContext(c), c.Params("userKey"), field)
	if err != nil {
		return h.userError(c, "read", started, err)
	}

	h.logUser(c, "read", started, nil)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(blob)
}

func (h *Handler) writeUserRecord(c fiber.Ctx) error {
	started := time.Now()
	field, err := userstore.ParseField(c.Params("field"))
	if err != nil {
		return h.userError(c, "write", started, err)
	}

	// fasthttp 会复用请求缓冲区，写盘前复制一份。
	blob := append([]byte(nil), c.Body()...)
	if err := h.users.Write(requestContext(c), c.Params("userKey"), field, blob); err != nil {
		return h.userError(c, "write", started, err)
	}

	h.logUser(c, "write", started, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// userError 把存储层错误映射为状态码：缺失 404，非法输入 400，其余 500。
func (h *Handler) userError(c fiber.Ctx, op string, started time.Time, err error) error {
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		h.logUser(c, op, started, nil)
		return server.RenderError(c, fiber.StatusNotFound, errorCodeNotFound)
	case errors.Is(err, userstore.ErrUnknownField),
		errors.Is(err, userstore.ErrInvalidUserKey),
		errors.Is(err, userstore.ErrInvalidBlob):
		h.logUser(c, op, started, err)
		return server.RenderError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logUser(c, op, started, err)
		return server.RenderError(c, fiber.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) logUser(c fiber.Ctx, op string, started time.Time, err error) {
	fields := logrus.Fields{
		"action":     "user_record",
		"op":         op,
		"field":      c.Params("field"),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}
	if requestID := server.RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Warn("user_record_failed")
		return
	}
	h.logger.WithFields(fields).Info("user_record_complete")
}
