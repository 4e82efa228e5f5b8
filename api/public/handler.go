package publicapi

import (
	"strings"

	"github.com/polycast/relay/biz/service"
	custerror "github.com/polycast/relay/internal/error"
	"github.com/polycast/relay/internal/logger"
	"github.com/polycast/relay/models/rest"

	"github.com/gofiber/fiber/v2"
)

func POSTStartSession(ctx *fiber.Ctx) error {
	userId, err := bearerUserId(ctx)
	if err != nil {
		return err
	}

	var req rest.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return custerror.FormatInvalidArgument("malformed request body: %s", err)
	}

	resp, err := service.
		GetSessionService().
		StartSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	logger.SDebug("POSTStartSession", logger.Json("response", resp))
	return ctx.Status(fiber.StatusCreated).JSON(resp)
}

func DELETEStopSession(ctx *fiber.Ctx) error {
	userId, err := bearerUserId(ctx)
	if err != nil {
		return err
	}

	resp, err := service.
		GetSessionService().
		StopSession(ctx.Context(), userId)
	if err != nil {
		return err
	}
	logger.SDebug("DELETEStopSession", logger.Json("response", resp))
	return ctx.JSON(resp)
}

func GETSessionStatus(ctx *fiber.Ctx) error {
	userId, err := bearerUserId(ctx)
	if err != nil {
		return err
	}

	resp, err := service.
		GetSessionService().
		Status(ctx.Context(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(resp)
}

func GETSessionHistory(ctx *fiber.Ctx) error {
	if _, err := bearerUserId(ctx); err != nil {
		return err
	}

	resp, err := service.
		GetSessionService().
		History(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(resp)
}

func GETDebugListSessions(ctx *fiber.Ctx) error {
	resp, err := service.
		GetSessionService().
		DebugListSessions(ctx.Context())
	if err != nil {
		return err
	}
	logger.SDebug("GETDebugListSessions", logger.Json("response", resp))
	return ctx.JSON(resp)
}

func GETIndex(ctx *fiber.Ctx) error {
	resp, err := service.
		GetSessionService().
		DebugListSessions(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.Render("sessions", fiber.Map{
		"Sessions": resp.Sessions,
	})
}

func GETHealthcheck(ctx *fiber.Ctx) error {
	return ctx.SendStatus(200)
}

func bearerUserId(ctx *fiber.Ctx) (string, error) {
	header := ctx.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", custerror.FormatUnauthenticated("missing bearer token")
	}
	userId, err := service.
		GetTokenVerifier().
		Verify(ctx.Context(), token)
	if err != nil {
		return "", err
	}
	return userId, nil
}
