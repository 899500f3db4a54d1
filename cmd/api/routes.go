package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/chat"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/middleware"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/normalize"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/lo"
)

const (
	defaultChatsLimit   = 50
	defaultHistoryLimit = 100
	maxPageLimit        = 500
)

// newHTTPApp builds the Fiber app: health check, read API and the
// WebSocket endpoint.
func newHTTPApp(ctx context.Context, svc *chat.Service, gateway *chat.Gateway, limiter *middleware.LimiterStore, origins string, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h := &apiHandlers{svc: svc}
	api := app.Group("/api", middleware.RateLimitHandler(limiter))
	api.Get("/users/:userId/chats", h.listChats)
	api.Get("/chats/:chatId/messages", h.history)

	app.Use("/socket", upgradeRequired)
	app.Get("/socket", websocket.New(socketHandler(ctx, gateway, log)))

	return app
}

type apiHandlers struct {
	svc *chat.Service
}

// listChats returns the chat list of a participant, newest first.
func (h *apiHandlers) listChats(c *fiber.Ctx) error {
	user := normalize.Identity(c.Params("userId"))
	if !normalize.ValidKey(user) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	convs, err := h.svc.ListChats(c.UserContext(), user, pageLimit(c, defaultChatsLimit))
	if err != nil {
		return err
	}
	if convs == nil {
		convs = []*data.Conversation{}
	}
	return c.JSON(fiber.Map{"chats": convs})
}

// history returns the latest messages of a conversation, oldest first.
func (h *apiHandlers) history(c *fiber.Ctx) error {
	msgs, err := h.svc.History(c.UserContext(), c.Params("chatId"), pageLimit(c, defaultHistoryLimit))
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func pageLimit(c *fiber.Ctx, def int) int64 {
	return int64(lo.Clamp(c.QueryInt("limit", def), 1, maxPageLimit))
}

// errorHandler maps chat errors to status codes and keeps store details out
// of responses.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, msg := fiber.StatusInternalServerError, "internal error"

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code, msg = fe.Code, fe.Message
		case errors.Is(err, chat.ErrNotFound):
			code, msg = fiber.StatusNotFound, "chat not found"
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
