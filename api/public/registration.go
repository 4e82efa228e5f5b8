package publicapi

import "github.com/gofiber/fiber/v2"

func ServiceRegistration() func(app *fiber.App) {
	return func(app *fiber.App) {
		sessionGroup := app.Group("/api/sessions")
		sessionGroup.Post("/", POSTStartSession)
		sessionGroup.Delete("/", DELETEStopSession)
		sessionGroup.Get("/", GETSessionStatus)
		sessionGroup.Get("/history", GETSessionHistory)

		debugGroup := app.Group("/api/debug")
		debugGroup.Get("/sessions", GETDebugListSessions)

		app.Get("/healthcheck", GETHealthcheck)
		app.Get("/", GETIndex)
	}
}
