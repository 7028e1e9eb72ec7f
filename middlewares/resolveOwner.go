package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Kariqs/galio-api/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	OwnerKey = "owner"
	UserKey  = "user"

	SessionHeader = "X-Session-Token"
	SessionCookie = "session_token"

	sessionMaxAge = 60 * 60 * 24 * 14
)

// ResolveOwner decides whose cart and orders the request acts on. A valid bearer
// token selects the account; otherwise the session token from the header or cookie
// is used, and a fresh one is issued when neither is present.
func ResolveOwner(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)

	return func(ctx *gin.Context) {
		owner := services.Owner{SessionKey: sessionToken(ctx)}

		if raw, ok := bearerToken(ctx); ok {
			claims, err := parseClaims(raw, secret)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
				return
			}
			if id, ok := claimUserID(claims); ok {
				owner.UserID = &id
			}
			ctx.Set(UserKey, claims)
		}

		if owner.UserID == nil && owner.SessionKey == "" {
			owner.SessionKey = uuid.NewString()
			ctx.SetCookie(SessionCookie, owner.SessionKey, sessionMaxAge, "/", "", false, true)
		}
		if owner.SessionKey != "" {
			ctx.Header(SessionHeader, owner.SessionKey)
		}

		ctx.Set(OwnerKey, owner)
		ctx.Next()
	}
}

func GetOwner(ctx *gin.Context) services.Owner {
	if v, ok := ctx.Get(OwnerKey); ok {
		if owner, ok := v.(services.Owner); ok {
			return owner
		}
	}
	return services.Owner{}
}

func sessionToken(ctx *gin.Context) string {
	if token := strings.TrimSpace(ctx.GetHeader(SessionHeader)); token != "" {
		return token
	}
	if cookie, err := ctx.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func bearerToken(ctx *gin.Context) (string, bool) {
	parts := strings.Fields(ctx.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func parseClaims(raw string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// claimUserID reads the account id from "id", or "user_id" for older tokens.
func claimUserID(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"id", "user_id"} {
		if v, ok := claims[key].(float64); ok && v > 0 {
			return uint(v), true
		}
	}
	return 0, false
}
