package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/utilities"
)

// RevocationCheck rejects tokens that were revoked through logout. It must run
// after RequireAuth.
func RevocationCheck(store auth.RevocationStore, log *logrus.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, err := auth.ExtractClaims(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: err.Error(),
			})
			return
		}

		revoked, err := store.IsRevoked(ctx.Request.Context(), claims.ID)
		if err != nil {
			log.WithError(err).Error("revocation lookup failed")
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, utilities.ErrorResponse{
				Error: "Failed to validate token",
			})
			return
		}

		if revoked {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: "Token has been revoked",
			})
			return
		}
		ctx.Next()
	}
}
