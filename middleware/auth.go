package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gobbs/gobbs/utils"
)

const (
	// ContextUIDKey is the key used to store the authenticated uid in Gin context.
	ContextUIDKey = "uid"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// AuthRequired ensures the request carries a valid bearer JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx)
		if !ok {
			ctx.Abort()
			return
		}
		if !authenticate(ctx, token) {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// AuthOptional resolves identity when a bearer token is present and lets the
// request through as a guest otherwise. A token that is present but invalid
// is still rejected; silent downgrade to guest would mask revocations.
func AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			ctx.Next()
			return
		}
		token, ok := bearerToken(ctx)
		if !ok {
			ctx.Abort()
			return
		}
		if !authenticate(ctx, token) {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		return "", false
	}
	return token, true
}

func authenticate(ctx *gin.Context, token string) bool {
	if utils.IsTokenBlacklisted(token) {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
		return false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return false
	}
	ctx.Set(ContextUIDKey, claims.UID)
	ctx.Set(ContextUsernameKey, claims.Username)
	return true
}
