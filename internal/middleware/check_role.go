package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"TalentPipe-backend/internal/auth"
)

// CheckRole will protect endpoint from tokens that do not carry one of roles
func CheckRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, err := auth.ExtractClaims(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		if !slices.Contains(roles, claims.Role) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "User doesn't have permission to access",
			})
			return
		}
		ctx.Next()
	}
}
