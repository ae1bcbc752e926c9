package handler

import (
    "net/http" // HTTP status codes and primitives
    "strings"  // string manipulation utilities
    "time"     // token expiry in responses

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/pixelden/session-booking/internal/config" // app configuration
    "github.com/pixelden/session-booking/internal/utils"  // helper functions (hashing, token issuing)
)

// AuthHandler issues staff access tokens.  There is a single staff account
// configured through the environment (STAFF_EMAIL and the bcrypt hash in
// STAFF_PASSWORD_HASH); no account table exists.
type AuthHandler struct {
	Cfg config.Config
}

func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{Cfg: cfg}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	Role    string    `json:"role"`
}

// Login checks the submitted credentials against the configured staff
// account and returns a signed access token with role STAFF.  Invalid
// credentials always produce the same 401 response so the endpoint does
// not reveal whether the email exists.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	if email != strings.ToLower(h.Cfg.StaffEmail) ||
		!utils.VerifyPassword(h.Cfg.StaffPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, email, "STAFF", h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	return c.JSON(http.StatusOK, loginResp{Token: tok.Token, Expires: tok.Exp, Role: "STAFF"})
}
