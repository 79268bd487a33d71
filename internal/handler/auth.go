package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/utils"
)

const authTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	responder
	Cfg    config.Config
	Users  UserAccounts
	Tokens RefreshTokens
	Resets PasswordResets
}

func NewAuthHandler(cfg config.Config, u UserAccounts, t RefreshTokens, r PasswordResets, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{responder: responder{log: log}, Cfg: cfg, Users: u, Tokens: t, Resets: r}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role"` // CUSTOMER | THEATRE_OWNER
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}
type otpReq struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}
type resetReq struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// registerRole maps the requested role.  Admin accounts are never self
// registered.
func registerRole(raw string) (model.Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(model.RoleCustomer):
		return model.RoleCustomer, true
	case "OWNER", string(model.RoleTheatreOwner):
		return model.RoleTheatreOwner, true
	}
	return "", false
}

// Register creates a user and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role, ok := registerRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be CUSTOMER or THEATRE_OWNER"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		return h.fail(c, err)
	}
	resp, err := h.issue(ctx, userPart{ID: uid, Email: email, Role: role})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return h.fail(c, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a
// new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.refreshOwner(ctx, hash)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return h.fail(c, err)
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the
// refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.refreshOwner(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
	if err != nil {
		return h.fail(c, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes either the refresh_token given in the body or, when
// only a valid bearer token is present, every session of that user.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(raw)); err == nil {
			uid = claims.UserID
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	switch {
	case refresh != "":
		hash := utils.HashRefreshRaw(refresh)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return h.fail(c, err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return h.fail(c, err)
		}
	case uid != 0:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return h.fail(c, err)
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

// ForgotPassword issues a one-time code for the account behind email.
// The code is not mailed; it is written to the log.  The response is
// the same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
	case err != nil:
		return h.fail(c, err)
	case u.IsActive:
		code, err := utils.NewOTP()
		if err != nil {
			return h.fail(c, err)
		}
		exp := time.Now().UTC().Add(h.otpTTL())
		if err := h.Resets.Issue(ctx, u.ID, utils.HashOTP(u.ID, code), exp); err != nil {
			return h.fail(c, err)
		}
		h.log.WithFields(logrus.Fields{"email": u.Email, "otp": code, "expires": exp}).Info("password reset code issued")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists a reset code has been issued"})
}

// VerifyOTP reports whether a reset code is still usable without
// consuming it.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.resetUser(ctx, req.Email)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Resets.Check(ctx, uid, utils.HashOTP(uid, req.OTP)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// ResetPassword consumes a reset code and sets a new password.  Every
// session of the user is revoked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.resetUser(ctx, req.Email)
	if err != nil {
		return h.fail(c, err)
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Resets.Reset(ctx, uid, utils.HashOTP(uid, req.OTP), hash); err != nil {
		return h.fail(c, err)
	}
	h.log.WithField("user_id", uid).Info("password reset")
	return c.NoContent(http.StatusNoContent)
}

// resetUser resolves the account a reset code belongs to.  An unknown
// email is reported like a wrong code.
func (h *AuthHandler) resetUser(ctx context.Context, email string) (uint64, error) {
	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrUserNotFound) {
		return 0, repository.ErrOTPInvalid
	}
	if err != nil {
		return 0, err
	}
	if !u.IsActive {
		return 0, repository.ErrOTPInvalid
	}
	return u.ID, nil
}

func (h *AuthHandler) otpTTL() time.Duration {
	if h.Cfg.OTPTTL > 0 {
		return h.Cfg.OTPTTL
	}
	return 10 * time.Minute
}

// refreshOwner resolves the active user behind a refresh token hash.
// Invalid tokens and vanished users are both reported as unauthorized.
func (h *AuthHandler) refreshOwner(ctx context.Context, hash string) (*model.User, error) {
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return nil, errors.Mark(err, errUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Mark(err, errUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, errUnauthorized
	}
	return u, nil
}

func (h *AuthHandler) issue(ctx context.Context, u userPart) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
