package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/config"
	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/pass"
	"github.com/premierpass/premier-pass/internal/repository"
	"github.com/premierpass/premier-pass/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserStore
}

func NewAuthHandler(cfg config.Config, users UserStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type session struct {
	User   sessionUser  `json:"user"`
	Access sessionToken `json:"access"`
}

type sessionUser struct {
	ID    uint64     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type sessionToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

var errBadCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")

// Login exchanges an email and password for an access token.  Users
// created without a login always get 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return writeError(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return writeError(c, &pass.ValidationError{Field: "email", Reason: "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return writeError(c, errBadCredentials)
	}
	if err != nil {
		return writeError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return writeError(c, errBadCredentials)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, string(u.Role), h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, session{
		User:   sessionUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
		Access: sessionToken{Token: access.Token, Expires: access.Exp},
	})
}

// Me echoes the caller's identity from the token.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, echo.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": uid,
		"role":    getRole(c),
	})
}

// EnsureAdmin creates the bootstrap admin account when email is set and
// no user holds it yet.  It is a no-op when email or password is empty.
func EnsureAdmin(ctx context.Context, users UserStore, email, password string, cost int) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err = users.CreateUser(ctx, model.User{
		Name:      "Administrator",
		Role:      model.RoleAdmin,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}, password, cost)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil
	}
	if err == nil {
		log.Printf("auth: created admin account %s", email)
	}
	return err
}
