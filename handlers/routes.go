package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router groups the handlers mounted by RegisterRoutes.
type Router struct {
	Auth            *AuthHandlers
	Recommendations *RecommendationHandlers
	Categories      *CategoryHandlers
	Collaborations  *CollaborationHandlers
	Health          *HealthHandlers
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Authenticated guards every route that needs a principal.
	Authenticated gin.HandlerFunc
	AdminOnly     gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, h Router) {
	r.GET("/healthz", h.Health.Healthz)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api")
	api.POST("/signup", h.Auth.Signup)
	api.POST("/login", h.Auth.Login)
	api.POST("/logout", h.Auth.Logout)

	categories := r.Group("/categories")
	categories.GET("/trending", h.Categories.GetTrending)
	categories.GET("/popular", h.Categories.GetPopular)
	categories.POST("/:id/view", h.Categories.RecordView)
	categories.POST("/:id/click", h.Categories.RecordClick)

	authed := r.Group("/", h.Authenticated)

	recs := authed.Group("/recommendations")
	recs.GET("/events", h.Recommendations.GetEvents)
	recs.POST("/track/click", h.Recommendations.TrackClick)
	recs.POST("/track/register", h.Recommendations.TrackRegistration)
	recs.POST("/track/impression", h.Recommendations.TrackImpressions)
	recs.GET("/analytics", h.Recommendations.GetAnalytics)
	recs.POST("/preferences", h.Recommendations.UpdatePreferences)
	recs.POST("/search/track", h.Recommendations.TrackSearch)
	recs.GET("/insights", h.Recommendations.GetInsights)
	recs.GET("/stats/interactions", h.AdminOnly, h.Recommendations.GetInteractionStats)
	recs.GET("/stats/top-events", h.AdminOnly, h.Recommendations.GetTopEvents)

	collabs := authed.Group("/collaborations")
	collabs.POST("/propose", h.Collaborations.Propose)
	collabs.GET("/:id", h.Collaborations.Get)
	collabs.GET("/:id/history", h.Collaborations.History)
	collabs.POST("/:id/submit", h.Collaborations.Submit)
	collabs.POST("/:id/counter", h.Collaborations.SubmitCounter)
	collabs.PUT("/:id/accept", h.Collaborations.Accept)
	collabs.PUT("/:id/reject", h.Collaborations.Decline)
	collabs.PUT("/:id/cancel", h.Collaborations.Cancel)

	admin := authed.Group("/admin", h.AdminOnly)
	admin.GET("/collaborations", h.Collaborations.Queue)
	admin.PUT("/collaborations/:id/approve", h.Collaborations.Approve)
	admin.PUT("/collaborations/:id/reject", h.Collaborations.Reject)
	admin.PUT("/collaborations/counters/:id/approve", h.Collaborations.ApproveCounter)
	admin.PUT("/collaborations/counters/:id/reject", h.Collaborations.RejectCounter)
}
