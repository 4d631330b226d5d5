package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/workflow"
)

// Gin context keys for the resolved actor
const (
	ctxKeyActorRole = "actor_role"
	ctxKeyActorID   = "actor_id"
)

// Dev-mode actor headers, honored only when no JWT secret is configured
const (
	headerActorRole = "X-Actor-Role"
	headerActorID   = "X-Actor-ID"
)

// actorClaims is the JWT claim set we read. Role feeds the transition
// validator; Subject identifies the actor in the audit trail.
type actorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ActorMiddleware resolves the calling actor for API routes.
//
// With a JWT secret configured it parses an HS256 bearer token and rejects
// invalid ones. Without a secret (dev mode) it reads the X-Actor-Role and
// X-Actor-ID headers. A request with no credentials at all proceeds as
// anonymous; the workflow engine denies transitions the role cannot make.
func ActorMiddleware(jwtSecret string, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := string(workflow.RoleAnonymous)
		id := ""

		if jwtSecret != "" {
			auth := c.GetHeader("Authorization")
			if auth != "" {
				raw := strings.TrimPrefix(auth, "Bearer ")
				claims, err := parseActorToken(raw, jwtSecret)
				if err != nil {
					logger.Error("Rejected bearer token", "error", err)
					c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
						Success: false,
						Error:   "invalid bearer token",
					})
					return
				}
				role = claims.Role
				id = claims.Subject
			}
		} else {
			if h := c.GetHeader(headerActorRole); h != "" {
				role = h
			}
			id = c.GetHeader(headerActorID)
		}

		c.Set(ctxKeyActorRole, role)
		c.Set(ctxKeyActorID, id)
		c.Next()
	}
}

// parseActorToken validates an HS256 token and returns its claims
func parseActorToken(raw, secret string) (*actorClaims, error) {
	claims := &actorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("token carries no role claim")
	}
	return claims, nil
}

// actorFromContext builds the workflow actor the middleware resolved
func actorFromContext(c *gin.Context) appwf.Actor {
	role := c.GetString(ctxKeyActorRole)
	if role == "" {
		role = string(workflow.RoleAnonymous)
	}
	return appwf.Actor{
		ID:   c.GetString(ctxKeyActorID),
		Role: workflow.Role(role),
	}
}
