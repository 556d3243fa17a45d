package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Response messages shown to the admin UI.
const (
	msgMissingCredentials = "이메일과 비밀번호를 입력해주세요."
	msgBadCredentials     = "이메일 또는 비밀번호가 올바르지 않습니다."
	msgLoginFailed        = "로그인 처리 중 오류가 발생했습니다."
	msgMissingToken       = "인증 토큰이 없습니다."
	msgInvalidToken       = "유효하지 않은 토큰입니다."
	msgForbidden          = "관리자 권한이 필요합니다."
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	User  *User  `json:"user,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handlers serves the login and verify routes.
type Handlers struct {
	verifier CredentialVerifier
	issuer   *Issuer
}

// NewHandlers wires a verifier and issuer.
func NewHandlers(v CredentialVerifier, i *Issuer) *Handlers {
	return &Handlers{verifier: v, issuer: i}
}

// Register mounts the routes on g.
func (h *Handlers) Register(g *echo.Group) {
	g.POST("/login", h.Login)
	g.GET("/verify", h.Verify)
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, loginResponse{Error: msgMissingCredentials})
	}

	user, err := h.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Ctx(ctx).Error().Err(err).Msg("credential verification failed")
		}
		log.Ctx(ctx).Info().Msg("admin login rejected")
		return c.JSON(http.StatusUnauthorized, loginResponse{Error: msgBadCredentials})
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("token issue failed")
		return c.JSON(http.StatusInternalServerError, loginResponse{Error: msgLoginFailed})
	}

	log.Ctx(ctx).Info().Str("email", user.Email).Msg("admin logged in")
	return c.JSON(http.StatusOK, loginResponse{Success: true, Token: token, User: &user})
}

// Verify handles GET /api/auth/verify.
func (h *Handlers) Verify(c echo.Context) error {
	token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return c.JSON(http.StatusUnauthorized, verifyResponse{Error: msgMissingToken})
	}

	user, err := h.issuer.Parse(token)
	if err != nil {
		log.Ctx(c.Request().Context()).Debug().Err(err).Msg("token rejected")
		return c.JSON(http.StatusUnauthorized, verifyResponse{Error: msgInvalidToken})
	}
	return c.JSON(http.StatusOK, verifyResponse{Valid: true, User: &user})
}

// userKey is the echo context key holding the authenticated User.
const userKey = "auth.user"

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(i *Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": msgMissingToken})
			}
			user, err := i.Parse(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": msgInvalidToken})
			}
			if user.Role != RoleAdmin {
				return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": msgForbidden})
			}
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// UserFrom returns the user stored by RequireAdmin.
func UserFrom(c echo.Context) (User, bool) {
	u, ok := c.Get(userKey).(User)
	return u, ok
}
