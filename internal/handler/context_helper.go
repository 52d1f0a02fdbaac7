package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushub/activity-attendance-api/internal/middleware"
	"github.com/campushub/activity-attendance-api/internal/models"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext rebuilds the acting user from JWT claims. Ownership and
// role checks only need the identity, not the full row.
func actorFromContext(c *gin.Context) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &models.User{ID: claims.UserID, Username: claims.Username, Role: claims.Role}
}

func parseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+" parameter")
	}
	return id, nil
}

func parsePageQuery(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && size > 0 {
		pageSize = size
	}
	return page, pageSize
}
