package server

import (
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LoginResponse is returned by login.
type LoginResponse struct {
	*service.TokenPair
	User *models.User `json:"user"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func countAuthEvent(event string, err error) {
	observability.AuthEvents.WithLabelValues(event, observability.Outcome(err)).Inc()
}

// Signup handles POST /auth/signup
// @Summary User signup
// @Description Register an unverified reader account and email a verification link
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	user, err := s.authService.Signup(c.UserContext(), req)
	countAuthEvent("signup", err)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// VerifyEmail handles POST /auth/verify
// @Summary Verify email
// @Tags auth
// @Accept json
// @Param request body object{token=string} true "Token from the verification link"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/verify [post]
func (s *Server) VerifyEmail(c *fiber.Ctx) error {
	var req tokenRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	err := s.authService.VerifyEmail(c.UserContext(), strings.TrimSpace(req.Token))
	countAuthEvent("verify_email", err)
	if err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResendVerification handles POST /auth/resend-verification. The response
// does not reveal whether the address exists.
func (s *Server) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if err := s.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If the address belongs to an unverified account, a new link was sent.",
	})
}

// Login handles POST /auth/login
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	pair, user, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	countAuthEvent("login", err)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(LoginResponse{TokenPair: pair, User: user})
}

// Refresh handles POST /auth/refresh
// @Summary Rotate tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} true "Refresh token"
// @Success 200 {object} service.TokenPair
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	pair, err := s.authService.Refresh(c.UserContext(), strings.TrimSpace(req.RefreshToken))
	countAuthEvent("refresh", err)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(pair)
}

// Logout handles POST /auth/logout. The body is optional.
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Param request body object{refresh_token=string} false "Refresh token to revoke"
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return fail(c, models.NewUnauthorizedError("Authorization required"))
	}
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return fail(c, err)
		}
	}
	err := s.authService.Logout(c.UserContext(), sess, strings.TrimSpace(req.RefreshToken))
	countAuthEvent("logout", err)
	if err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /auth/me
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	user, err := s.authService.Me(c.UserContext(), actor.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// RequestPasswordReset handles POST /auth/reset-password. The response does
// not reveal whether the address exists.
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If the address belongs to an account, a reset link was sent.",
	})
}

// ConfirmPasswordReset handles POST /auth/reset-password/confirm
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	err := s.authService.ConfirmPasswordReset(c.UserContext(), strings.TrimSpace(req.Token), req.Password)
	countAuthEvent("reset_password", err)
	if err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangePassword handles PUT /auth/password
// @Summary Change password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Param request body object{current_password=string,new_password=string} true "Passwords"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/password [put]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if err := s.authService.ChangePassword(c.UserContext(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
