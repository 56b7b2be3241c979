package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/http/middleware"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/service"
)

// AuthHandler serves login, refresh and tenant-switch endpoints.
type AuthHandler struct {
	Auth      *service.AuthService
	Lifecycle *service.LifecycleManager
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against the resolved tenant and returns a scoped token.
func (h *AuthHandler) Login(c *gin.Context) {
	res, ok := middleware.GetResolution(c)
	if !ok {
		respondError(c, errs.Forbidden())
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("body", "email and password are required"))
		return
	}

	raw, user, err := h.Auth.Login(c.Request.Context(), res, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": raw, "user": user})
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// Refresh exchanges a still-valid token for a fresh one.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("token", "token is required"))
		return
	}

	raw, err := h.Auth.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": raw})
}

type switchTenantRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id" binding:"required"`
}

// SwitchTenant rescopes the caller (or, for super-admins, any user) to
// another tenant and returns the re-issued token.
func (h *AuthHandler) SwitchTenant(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respondError(c, errs.InvalidToken())
		return
	}

	var req switchTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("tenant_id", "tenant_id is required"))
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		respondError(c, errs.Validation("tenant_id", "invalid tenant id"))
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		respondError(c, errs.InvalidToken())
		return
	}
	if req.UserID != "" {
		target, err := uuid.Parse(req.UserID)
		if err != nil {
			respondError(c, errs.Validation("user_id", "invalid user id"))
			return
		}
		// Only super-admins may act on another user; the manager enforces it.
		if target != userID && claims.Role != model.RoleSuperAdmin {
			respondError(c, errs.Forbidden())
			return
		}
		userID = target
	}

	raw, err := h.Lifecycle.SwitchUserTenant(c.Request.Context(), claims, userID, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": raw})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respondError(c, errs.InvalidToken())
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		respondError(c, errs.InvalidToken())
		return
	}

	user, err := h.Auth.User(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
