package controller

import (
	"errors"

	"dripcast/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

type ContactController struct {
	Ledger     *ledger.Ledger
	BookingURL string
	Logger     *logrus.Logger
}

func NewContactController(l *ledger.Ledger, bookingURL string, logger *logrus.Logger) *ContactController {
	return &ContactController{
		Ledger:     l,
		BookingURL: bookingURL,
		Logger:     logger,
	}
}

// CreateContact enrolls a new contact into the drip sequence.
func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	var input struct {
		Name        string `json:"name" validate:"required"`
		Email       string `json:"email" validate:"required,email"`
		CompanyName string `json:"company_name"`
		CompanyURL  string `json:"company_url"`
		LinkedIn    string `json:"linkedin"`
		Industry    string `json:"industry"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	contact, err := cc.Ledger.Create(ledger.ContactProfile{
		Name:        input.Name,
		Email:       input.Email,
		CompanyName: input.CompanyName,
		CompanyURL:  input.CompanyURL,
		LinkedIn:    input.LinkedIn,
		Industry:    input.Industry,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateContact) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Contact with this email already exists",
			})
		}
		cc.Logger.Errorf("failed to create contact: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create contact",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Contact created successfully",
		"contact": contact,
	})
}

// GetDripStatus reports where a contact sits in the sequence.
func (cc *ContactController) GetDripStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid contact ID",
		})
	}

	status, err := cc.Ledger.DripStatus(uint(id))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Contact not found",
			})
		}
		cc.Logger.Errorf("failed to fetch drip status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch drip status",
		})
	}

	return c.JSON(status)
}

// BookMeeting records a booking-link click and redirects to the
// external scheduling page.
func (cc *ContactController) BookMeeting(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid contact ID",
		})
	}

	if err := cc.Ledger.SetBookingStatus(uint(id), "clicked"); err != nil {
		cc.Logger.Warnf("failed to record booking click for contact %d: %v", id, err)
	}

	if cc.BookingURL == "" {
		return c.JSON(fiber.Map{
			"message": "Booking interest recorded",
		})
	}
	return c.Redirect(cc.BookingURL, fiber.StatusFound)
}
