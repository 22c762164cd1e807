package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"credentialing-backend/internal/engine"
	"credentialing-backend/internal/store"
)

const minPasswordLength = 8

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
	logger    *slog.Logger
}

func NewAuthHandler(s *store.Store, jwtSecret string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register. Every account gets a fresh
// owner key; that key owns at most one draft.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body credentials
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	var details []engine.ErrorDetail
	if _, err := mail.ParseAddress(body.Email); err != nil {
		details = append(details, engine.ErrorDetail{Field: "email", Rule: "format", Message: "must be a valid email address"})
	}
	if len(body.Password) < minPasswordLength {
		details = append(details, engine.ErrorDetail{Field: "password", Rule: "min_length", Message: "must be at least 8 characters"})
	}
	if len(details) > 0 {
		return engine.ValidationError(details)
	}

	hash, err := HashPassword(body.Password)
	if err != nil {
		return engine.InternalError(err)
	}

	ctx := c.UserContext()
	d := h.store.Dialect
	ownerKey := uuid.NewString()
	row, err := store.QueryRow(ctx, h.store.DB,
		"INSERT INTO _accounts (owner_key, email, password_hash, roles) VALUES ("+
			d.Placeholder(1)+", "+d.Placeholder(2)+", "+d.Placeholder(3)+", "+d.Placeholder(4)+") RETURNING id",
		ownerKey, body.Email, hash, RoleApplicant)
	if err != nil {
		if errors.Is(store.MapError(d, err), store.ErrUniqueViolation) {
			return engine.ConflictError("An account with this email already exists", nil)
		}
		return engine.InternalError(err)
	}
	accountID, _ := store.ToInt64(row["id"])
	h.logger.InfoContext(ctx, "account registered", "account_id", accountID, "owner_key", ownerKey)

	pair, err := h.generateTokenPair(ctx, accountID, ownerKey, []string{RoleApplicant})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": pair})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body credentials
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	ctx := c.UserContext()
	d := h.store.Dialect
	account, err := store.QueryRow(ctx, h.store.DB,
		"SELECT id, owner_key, password_hash, roles, active FROM _accounts WHERE email = "+d.Placeholder(1),
		strings.ToLower(strings.TrimSpace(body.Email)))
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}
	if !isActive(account["active"]) {
		return engine.UnauthorizedError("Account is disabled")
	}
	passwordHash, _ := account["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	accountID, _ := store.ToInt64(account["id"])
	ownerKey, _ := account["owner_key"].(string)
	pair, err := h.generateTokenPair(ctx, accountID, ownerKey, parseRoles(account["roles"]))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. Refresh tokens are single use.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx := c.UserContext()
	d := h.store.Dialect
	row, err := store.QueryRow(ctx, h.store.DB,
		`SELECT rt.account_id, rt.expires_at, a.owner_key, a.roles, a.active
		 FROM _refresh_tokens rt
		 JOIN _accounts a ON a.id = rt.account_id
		 WHERE rt.token = `+d.Placeholder(1), body.RefreshToken)
	if err != nil {
		return engine.UnauthorizedError("Invalid refresh token")
	}

	// rotate before anything else so a leaked token is burned either way
	_, _ = store.Exec(ctx, h.store.DB, "DELETE FROM _refresh_tokens WHERE token = "+d.Placeholder(1), body.RefreshToken)

	expiresAt, _ := row["expires_at"].(time.Time)
	if time.Now().After(expiresAt) {
		return engine.UnauthorizedError("Refresh token expired")
	}
	if !isActive(row["active"]) {
		return engine.UnauthorizedError("Account is disabled")
	}

	accountID, _ := store.ToInt64(row["account_id"])
	ownerKey, _ := row["owner_key"].(string)
	pair, err := h.generateTokenPair(ctx, accountID, ownerKey, parseRoles(row["roles"]))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	_, _ = store.Exec(c.UserContext(), h.store.DB,
		"DELETE FROM _refresh_tokens WHERE token = "+h.store.Dialect.Placeholder(1), body.RefreshToken)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
}

func (h *AuthHandler) generateTokenPair(ctx context.Context, accountID int64, ownerKey string, roles []string) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(ownerKey, roles, h.jwtSecret, AccessTokenTTL)
	if err != nil {
		return nil, engine.InternalError(err)
	}

	d := h.store.Dialect
	refreshToken := GenerateRefreshToken()
	_, err = store.Exec(ctx, h.store.DB,
		"INSERT INTO _refresh_tokens (token, account_id, expires_at) VALUES ("+
			d.Placeholder(1)+", "+d.Placeholder(2)+", "+d.Placeholder(3)+")",
		refreshToken, accountID, d.TimeParam(time.Now().Add(RefreshTokenTTL)))
	if err != nil {
		return nil, engine.InternalError(err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func isActive(v any) bool {
	switch a := v.(type) {
	case bool:
		return a
	default:
		n, ok := store.ToInt64(v)
		return ok && n != 0
	}
}
