package controller

import (
	"dripcast/engine"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// JobController exposes manual triggers for the scheduled passes,
// useful for operational reruns and testing against a live mailbox.
type JobController struct {
	Drips   *engine.DripEngine
	Replies *engine.ReplyPipeline
	Logger  *logrus.Logger
}

func NewJobController(drips *engine.DripEngine, replies *engine.ReplyPipeline, logger *logrus.Logger) *JobController {
	return &JobController{
		Drips:   drips,
		Replies: replies,
		Logger:  logger,
	}
}

func (jc *JobController) ProcessInitial(c *fiber.Ctx) error {
	sent, err := jc.Drips.ProcessInitialEmails(c.Context())
	if err != nil {
		jc.Logger.Errorf("initial email pass failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Initial email pass failed",
			"sent":  sent,
		})
	}
	return c.JSON(fiber.Map{
		"message": "Initial email pass completed",
		"sent":    sent,
	})
}

func (jc *JobController) ProcessDrips(c *fiber.Ctx) error {
	sent, err := jc.Drips.ProcessDrips(c.Context())
	if err != nil {
		jc.Logger.Errorf("drip pass failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Drip pass failed",
			"sent":  sent,
		})
	}
	return c.JSON(fiber.Map{
		"message": "Drip pass completed",
		"sent":    sent,
	})
}

func (jc *JobController) CheckReplies(c *fiber.Ctx) error {
	processed, err := jc.Replies.CheckReplies(c.Context())
	if err != nil {
		jc.Logger.Errorf("reply check failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Reply check failed",
			"processed": processed,
		})
	}
	return c.JSON(fiber.Map{
		"message":   "Reply check completed",
		"processed": processed,
	})
}
