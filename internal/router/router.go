package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/corrigo/corrigo-api/internal/config"
	"github.com/corrigo/corrigo-api/internal/handler"
	"github.com/corrigo/corrigo-api/internal/middleware"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExerciseHandler   *handler.ExerciseHandler
	SubmissionHandler *handler.SubmissionHandler
	CorrectionHandler *handler.CorrectionHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ExerciseHandler != nil {
		exerciseGroup := api.Group("/exercises", jwtMiddleware)
		deps.ExerciseHandler.Register(exerciseGroup)

		// Upload lives under the exercise: POST /exercises/:id/submissions
		if deps.SubmissionHandler != nil {
			uploadGroup := exerciseGroup.Group("", middleware.RateLimit("submission-upload", 5, time.Minute))
			deps.SubmissionHandler.RegisterUpload(uploadGroup)
		}
	}

	if deps.SubmissionHandler != nil {
		submissionGroup := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissionGroup)
	}

	if deps.CorrectionHandler != nil {
		correctionGroup := api.Group("/corrections", jwtMiddleware, middleware.RequireRole(models.RoleProfessor))
		deps.CorrectionHandler.Register(correctionGroup)
	}
}
