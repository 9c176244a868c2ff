package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"docportal/internal/apperr"
	"docportal/internal/http/middleware"
	"docportal/internal/model"
	"docportal/internal/service"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	InviteCode  string `json:"invite_code"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var errInvalidBody = apperr.Validation("Ungültige Anfrage", nil)

// Register creates an account. Clients ("Mandant") must send the invite code
// of their firm.
//
// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "registration form"
// @Success 201 {object} model.Identity
// @Failure 400 {object} errorPayload
// @Router /auth/register [post]
func Register(svc service.AuthService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		id, err := svc.Register(ctx, service.RegisterInput{
			Email:       req.Email,
			Password:    req.Password,
			Role:        model.Role(req.Role),
			InviteCode:  req.InviteCode,
			DisplayName: req.DisplayName,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(id)
	}
}

// Login exchanges credentials for a session token.
//
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} service.LoginResult
// @Failure 401 {object} errorPayload
// @Router /auth/login [post]
func Login(svc service.AuthService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}

		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		res, err := svc.Login(ctx, req.Email, req.Password)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// Logout ends the current session.
//
// @Summary Sign out
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func Logout(svc service.AuthService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		if err := svc.Logout(ctx, middleware.TokenFrom(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Me returns the signed-in identity.
//
// @Summary Current identity
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} model.Identity
// @Router /me [get]
func Me() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := middleware.IdentityFrom(c)
		if id == nil {
			return apperr.ErrNotAuthenticated
		}
		return c.JSON(id)
	}
}
