package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"TalentPipe-backend/internal/utilities"
)

// ClaimsKey is the gin context key RequireAuth stores *Claims under
const ClaimsKey = "claims"

// LogoutController revokes the caller's token
type LogoutController struct {
	Store RevocationStore
}

// NewLogoutController creates a new instance of LogoutController
func NewLogoutController(store RevocationStore) *LogoutController {
	return &LogoutController{Store: store}
}

// LogoutHandler revokes the access token used for this request.
// @Summary Revoke the current access token
// @Tags Auth
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {object} utilities.MessageResponse "Successfully logged out"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 500 {object} utilities.ErrorResponse "Failed to logout"
// @Router /auth/logout [post]
func (lc *LogoutController) LogoutHandler(c *gin.Context) {
	claims, err := ExtractClaims(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	if err := lc.Store.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, utilities.MessageResponse{Message: "Successfully logged out"})
}

// ExtractClaims returns the claims RequireAuth put in the context
func ExtractClaims(c *gin.Context) (*Claims, error) {
	claims, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	realClaims, okCast := claims.(*Claims)
	if !okCast {
		return nil, errors.New("invalid token claims type")
	}
	return realClaims, nil
}
