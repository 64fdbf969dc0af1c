package routes

import (
	controller "dripcast/controllers"
	"dripcast/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Setup wires the operations API: contact enrollment, drip status,
// booking click-through, and manual job triggers.
func Setup(app *fiber.App, contacts *controller.ContactController, jobs *controller.JobController) {
	app.Use(middleware.CORS())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	contactGroup := app.Group("/contacts")
	contactGroup.Post("/", contacts.CreateContact)
	contactGroup.Get("/:id/drip-status", contacts.GetDripStatus)

	app.Get("/book/:id", contacts.BookMeeting)

	jobGroup := app.Group("/jobs")
	jobGroup.Post("/process-initial", jobs.ProcessInitial)
	jobGroup.Post("/process-drips", jobs.ProcessDrips)
	jobGroup.Post("/check-replies", jobs.CheckReplies)
}
