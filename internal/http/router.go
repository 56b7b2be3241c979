package http

import (
	"github.com/gin-gonic/gin"

	"github.com/teresa-solution/tenant-access-service/internal/http/handler"
	"github.com/teresa-solution/tenant-access-service/internal/http/middleware"
	"github.com/teresa-solution/tenant-access-service/internal/tenant"
)

// NewRouter wires Gin routes and middleware. Every route runs behind tenant
// resolution; token requirements vary per group.
func NewRouter(resolver *tenant.Resolver, authMiddleware *middleware.Auth, authHandler *handler.AuthHandler, tenantHandler *handler.TenantHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Tenant(resolver))

	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/switch-tenant", authMiddleware.ValidateToken, authHandler.SwitchTenant)
		auth.GET("/me", authMiddleware.ValidateToken, authHandler.Me)
	}

	users := r.Group("/users", authMiddleware.ValidateToken, authMiddleware.RequireTenantScope, authMiddleware.RequireAdmin)
	{
		users.POST("", tenantHandler.RegisterUser)
		users.DELETE("/:id", tenantHandler.RemoveUser)
		users.POST("/:id/promote", tenantHandler.PromoteUser)
	}

	r.POST("/domains/request", authMiddleware.ValidateToken, authMiddleware.RequireTenantScope, authMiddleware.RequireAdmin, tenantHandler.RequestDomain)

	admin := r.Group("/tenants", authMiddleware.ValidateToken, authMiddleware.RequireSuperAdmin)
	{
		admin.POST("", tenantHandler.Create)
		admin.GET("/:id", tenantHandler.Get)
		admin.PATCH("/:id", tenantHandler.Update)
		admin.POST("/:id/suspend", tenantHandler.Suspend)
		admin.POST("/:id/activate", tenantHandler.Activate)
		admin.POST("/:id/cancel", tenantHandler.Cancel)
		admin.POST("/:id/domains/:domain/approve", tenantHandler.ApproveDomain)
		admin.POST("/:id/domains/:domain/reject", tenantHandler.RejectDomain)
	}

	return r
}
