package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/timeoff-service/internal/service"
)

// ReferenceHandler serves cached directory data.
type ReferenceHandler struct {
	refs *service.ReferenceService
}

func NewReferenceHandler(refs *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{refs: refs}
}

// Users GET /reference/users.
func (h *ReferenceHandler) Users(c *fiber.Ctx) error {
	users, err := h.refs.Users(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": users})
}

// Departments GET /reference/departments.
func (h *ReferenceHandler) Departments(c *fiber.Ctx) error {
	departments, err := h.refs.Departments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": departments})
}

// Grades GET /reference/grades.
func (h *ReferenceHandler) Grades(c *fiber.Ctx) error {
	grades, err := h.refs.Grades(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grades})
}
