package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskhub/internal/model"
	"taskhub/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents a user registration request. At least one of email and
// phone is required.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,e164"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest identifies the account by email or phone.
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

// VerifyTwoFactorRequest completes a 2FA login.
type VerifyTwoFactorRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Code   string    `json:"code" validate:"required,len=6,numeric"`
}

// VerifyEmailRequest confirms an email address.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// VerifyPhoneRequest confirms a phone number.
type VerifyPhoneRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// SendVerificationRequest asks for a new code on one channel.
type SendVerificationRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email phone"`
	Email   string `json:"email" validate:"required_if=Channel email,omitempty,email"`
	Phone   string `json:"phone" validate:"required_if=Channel phone"`
}

// ForgotPasswordRequest starts password recovery by email or phone.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" validate:"required_without=Email"`
}

// ResetPasswordRequest sets a new password with a reset token.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AdminLoginRequest represents a master admin login.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse reports the new account and code delivery.
type RegisterResponse struct {
	Message   string      `json:"message"`
	User      *model.User `json:"user"`
	EmailSent bool        `json:"emailSent"`
	SMSSent   bool        `json:"smsSent"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         interface{} `json:"user,omitempty"`
}

// UnverifiedResponse is returned by login for accounts that still need verification.
type UnverifiedResponse struct {
	Message   string `json:"message"`
	EmailSent bool   `json:"emailSent"`
	SMSSent   bool   `json:"smsSent"`
}

// TwoFactorChallengeResponse is returned by login when a 2FA code was sent.
type TwoFactorChallengeResponse struct {
	TwoFactorRequired bool      `json:"twoFactorRequired"`
	UserID            uuid.UUID `json:"userId"`
	Message           string    `json:"message"`
	EmailSent         bool      `json:"emailSent"`
	SMSSent           bool      `json:"smsSent"`
}

// SentResponse reports whether a message went out.
type SentResponse struct {
	Message string `json:"message"`
	Sent    bool   `json:"sent"`
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, RegisterResponse{
		Message:   "User registered successfully. Please verify your account",
		User:      res.User,
		EmailSent: res.EmailSent,
		SMSSent:   res.SMSSent,
	})
}

// Login godoc
// @Summary Login user
// @Description Returns tokens, a 2FA challenge, or 201 when the account is not verified yet.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Success 201 {object} UnverifiedResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), service.LoginInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	switch {
	case res.Unverified:
		return c.JSON(http.StatusCreated, UnverifiedResponse{
			Message:   res.Message,
			EmailSent: res.EmailSent,
			SMSSent:   res.SMSSent,
		})
	case res.TwoFactorRequired:
		return c.JSON(http.StatusOK, TwoFactorChallengeResponse{
			TwoFactorRequired: true,
			UserID:            res.UserID,
			Message:           "A login code has been sent",
			EmailSent:         res.EmailSent,
			SMSSent:           res.SMSSent,
		})
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
	})
}

// VerifyTwoFactor godoc
// @Summary Complete a two-factor login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyTwoFactorRequest true "User id and code"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/verify-2fa [post]
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req VerifyTwoFactorRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tokens, user, err := h.authService.VerifyTwoFactor(c.Request().Context(), req.UserID, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         user,
	})
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyEmailRequest true "Email and code"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.VerifyEmail(c.Request().Context(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

// VerifyPhone godoc
// @Summary Verify a phone number
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyPhoneRequest true "Phone and code"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/verify-phone [post]
func (h *AuthHandler) VerifyPhone(c echo.Context) error {
	var req VerifyPhoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.VerifyPhone(c.Request().Context(), req.Phone, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Phone number verified successfully"})
}

// SendVerification godoc
// @Summary Send a new verification code, replacing any pending one
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SendVerificationRequest true "Channel and identifier"
// @Success 200 {object} SentResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/send-verification [post]
func (h *AuthHandler) SendVerification(c echo.Context) error {
	return h.sendVerification(c, service.IssueReplace)
}

// ResendVerification godoc
// @Summary Resend a verification code unless one is still pending
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SendVerificationRequest true "Channel and identifier"
// @Success 200 {object} SentResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	return h.sendVerification(c, service.IssueRejectIfActive)
}

func (h *AuthHandler) sendVerification(c echo.Context, mode service.IssueMode) error {
	var req SendVerificationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	channel := service.Channel(req.Channel)
	identifier := req.Email
	if channel == service.ChannelPhone {
		identifier = req.Phone
	}

	sent, err := h.authService.SendVerification(c.Request().Context(), channel, identifier, mode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SentResponse{Message: "Verification code sent", Sent: sent})
}

// ForgotPassword godoc
// @Summary Send a password reset link
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Email or phone"
// @Success 200 {object} SentResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	channel, identifier := service.ChannelEmail, req.Email
	if identifier == "" {
		channel, identifier = service.ChannelPhone, req.Phone
	}

	sent, err := h.authService.ForgotPassword(c.Request().Context(), channel, identifier)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SentResponse{Message: "Password reset instructions sent", Sent: sent})
}

// ResetPassword godoc
// @Summary Reset the password with a reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}

// Refresh godoc
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	accessToken, err := h.authService.RefreshToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{AccessToken: accessToken})
}

// Logout godoc
// @Summary Logout user
// @Description Revokes the refresh token. A bearer access token, when present, is blacklisted.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LogoutRequest true "Refresh token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken, bearerToken(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "logged out successfully"})
}

// AdminLogin godoc
// @Summary Login as the master admin
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AdminLoginRequest true "Admin credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /admin/login [post]
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req AdminLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, admin, err := h.authService.AdminLogin(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{AccessToken: token, User: admin})
}
