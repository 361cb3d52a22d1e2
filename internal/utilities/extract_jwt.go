package utilities

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// ExtractBearerToken returns the token of a "Bearer <token>" Authorization header
func ExtractBearerToken(c *gin.Context) (string, error) {
	const bearerSchema = "bearer "
	authHeader := c.GetHeader("Authorization")

	if len(authHeader) <= len(bearerSchema) || !strings.EqualFold(authHeader[:len(bearerSchema)], bearerSchema) {
		return "", errors.New("Invalid authorization header")
	}

	return strings.TrimSpace(authHeader[len(bearerSchema):]), nil
}
