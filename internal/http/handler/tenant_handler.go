package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/http/middleware"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/service"
)

// TenantHandler serves tenant administration and user-management endpoints.
type TenantHandler struct {
	Lifecycle *service.LifecycleManager
	Auth      *service.AuthService
}

type createTenantRequest struct {
	Name          string `json:"name" binding:"required"`
	Domain        string `json:"domain" binding:"required"`
	ContactEmail  string `json:"contact_email"`
	AdminEmail    string `json:"admin_email" binding:"required"`
	AdminPassword string `json:"admin_password" binding:"required"`
	Plan          string `json:"plan"`
}

// Create provisions a tenant with its trial subscription and admin user.
// Super-admin only; tenant-scoped quotas do not apply here.
func (h *TenantHandler) Create(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("body", "name, domain, admin_email and admin_password are required"))
		return
	}

	result, err := h.Lifecycle.CreateTenant(c.Request.Context(), service.CreateTenantInput{
		Name:          req.Name,
		Domain:        req.Domain,
		ContactEmail:  req.ContactEmail,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		Plan:          req.Plan,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"tenant":       result.Tenant,
		"subscription": result.Subscription,
		"admin_user":   result.AdminUser,
	})
}

// Get returns a tenant by id. Super-admin only.
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}
	tenant, err := h.Lifecycle.Tenant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenant})
}

type updateTenantRequest struct {
	Name         *string               `json:"name"`
	ContactEmail *string               `json:"contact_email"`
	Settings     *model.TenantSettings `json:"settings"`
}

// Update patches tenant fields. Last write wins.
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}
	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("body", "malformed request body"))
		return
	}

	tenant, err := h.Lifecycle.UpdateTenant(c.Request.Context(), id, service.UpdateTenantPatch{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Settings:     req.Settings,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenant})
}

// Suspend suspends a tenant.
func (h *TenantHandler) Suspend(c *gin.Context) {
	h.transition(c, h.Lifecycle.Suspend)
}

// Activate activates a tenant.
func (h *TenantHandler) Activate(c *gin.Context) {
	h.transition(c, h.Lifecycle.Activate)
}

// Cancel soft-deletes a tenant.
func (h *TenantHandler) Cancel(c *gin.Context) {
	h.transition(c, h.Lifecycle.Cancel)
}

type domainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// RequestDomain files a custom-domain approval request for the resolved
// tenant.
func (h *TenantHandler) RequestDomain(c *gin.Context) {
	res, ok := middleware.GetResolution(c)
	if !ok || res.Tenant == nil {
		respondError(c, errs.Forbidden())
		return
	}
	var req domainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("domain", "domain is required"))
		return
	}
	if err := h.Lifecycle.RequestDomain(c.Request.Context(), res.Tenant.ID, req.Domain); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": model.DomainRequestPending})
}

// ApproveDomain approves a pending custom-domain request. Super-admin only.
func (h *TenantHandler) ApproveDomain(c *gin.Context) {
	h.settleDomain(c, h.Lifecycle.ApproveDomain)
}

// RejectDomain rejects a pending custom-domain request. Super-admin only.
func (h *TenantHandler) RejectDomain(c *gin.Context) {
	h.settleDomain(c, h.Lifecycle.RejectDomain)
}

type registerUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// RegisterUser creates a user within the resolved tenant, subject to the
// subscription quota.
func (h *TenantHandler) RegisterUser(c *gin.Context) {
	res, ok := middleware.GetResolution(c)
	if !ok || res.Tenant == nil {
		respondError(c, errs.Forbidden())
		return
	}
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("body", "email and password are required"))
		return
	}

	user, err := h.Auth.RegisterUser(c.Request.Context(), res.Tenant, service.RegisterUserInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// RemoveUser deletes a user within the resolved tenant.
func (h *TenantHandler) RemoveUser(c *gin.Context) {
	res, ok := middleware.GetResolution(c)
	if !ok || res.Tenant == nil {
		respondError(c, errs.Forbidden())
		return
	}
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "invalid user id"))
		return
	}
	if err := h.Auth.RemoveUser(c.Request.Context(), res.Tenant, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PromoteUser raises a tenant user to admin, subject to the admin quota.
func (h *TenantHandler) PromoteUser(c *gin.Context) {
	res, ok := middleware.GetResolution(c)
	if !ok || res.Tenant == nil {
		respondError(c, errs.Forbidden())
		return
	}
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "invalid user id"))
		return
	}
	if err := h.Auth.PromoteToAdmin(c.Request.Context(), res.Tenant, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TenantHandler) transition(c *gin.Context, op func(ctx context.Context, id uuid.UUID) error) {
	id, ok := tenantID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TenantHandler) settleDomain(c *gin.Context, op func(ctx context.Context, id uuid.UUID, domain string) error) {
	id, ok := tenantID(c)
	if !ok {
		return
	}
	domain := c.Param("domain")
	if domain == "" {
		respondError(c, errs.Validation("domain", "domain is required"))
		return
	}
	if err := op(c.Request.Context(), id, domain); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "invalid tenant id"))
		return uuid.Nil, false
	}
	return id, true
}
