package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// Router groups the handlers mounted under the API prefix.
type Router struct {
	Auth         *AuthHandler
	Documents    *DocumentHandler
	Requirements *RequirementHandler
	Permissions  *PermissionHandler
	Metrics      *MetricsHandler
}

// Register mounts every API route on api. authenticate must validate the
// bearer token; superAdmin gates the admin-only summary endpoints.
func (r *Router) Register(api *gin.RouterGroup, authenticate, superAdmin gin.HandlerFunc) {
	api.POST("/auth/login", r.Auth.Login)

	secured := api.Group("", authenticate)
	secured.GET("/auth/me", r.Auth.Me)
	secured.GET("/requirements", r.Requirements.Catalog)

	r.registerEntity(secured.Group("/students/:id", BindEntityType(models.EntityTypeStudent)))
	staff := secured.Group("/staff/:id", BindEntityType(models.EntityTypeStaff))
	r.registerEntity(staff)
	staff.GET("/permissions", r.Permissions.List)
	staff.PUT("/permissions", r.Permissions.Replace)
	staff.GET("/permissions/effective", r.Permissions.Effective)
	staff.GET("/permissions/check", r.Permissions.Check)

	docs := secured.Group("/documents")
	docs.POST("/purge", r.Documents.Purge)
	docs.GET("/:id", r.Documents.Get)
	docs.GET("/:id/download-url", r.Documents.DownloadURL)
	docs.GET("/:id/download", r.Documents.Download)
	docs.DELETE("/:id", r.Documents.Delete)
	docs.DELETE("/:id/permanent", r.Documents.PermanentDelete)

	if r.Metrics != nil {
		secured.GET("/admin/metrics", superAdmin, r.Metrics.Summary)
	}
}

func (r *Router) registerEntity(group *gin.RouterGroup) {
	group.GET("/documents", r.Documents.List)
	group.POST("/documents", r.Documents.Upload)
	group.GET("/requirements", r.Requirements.Checklist)
	group.GET("/requirements/export", r.Requirements.Export)
	group.DELETE("/requirements/:code", r.Documents.Unlink)
}
