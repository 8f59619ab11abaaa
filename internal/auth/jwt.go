package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	claimSubject  = "sub"
	claimAgentID  = "agent_id"
	claimTenantID = "tenant_id"
	claimRole     = "role"
)

// JWTMiddleware returns a JWT auth middleware configured for HS256 tokens.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		Skipper:       skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
	})
}

// Identity carries the authenticated agent resolved from JWT claims.
type Identity struct {
	AgentID  string
	TenantID string
	Role     string
}

// IdentityFromContext extracts the agent identity from JWT claims.
func IdentityFromContext(c echo.Context) (Identity, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	identity := Identity{
		AgentID:  claimString(claims, claimAgentID),
		TenantID: claimString(claims, claimTenantID),
		Role:     claimString(claims, claimRole),
	}
	if identity.AgentID == "" {
		identity.AgentID = claimString(claims, claimSubject)
	}
	if identity.AgentID == "" {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "agent id missing")
	}
	if identity.TenantID == "" {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "tenant id missing")
	}
	return identity, nil
}

// GenerateToken creates a signed JWT for an agent within a tenant.
func GenerateToken(agentID, tenantID, role, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(agentID) == "" {
		return "", time.Time{}, fmt.Errorf("agent id is required")
	}
	if strings.TrimSpace(tenantID) == "" {
		return "", time.Time{}, fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimSubject:  agentID,
		claimAgentID:  agentID,
		claimTenantID: tenantID,
		claimRole:     strings.TrimSpace(role),
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(raw)
	}
}
