package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/middleware"
	"eventhub/api/models"
	"eventhub/api/recommend"
	"eventhub/api/store"
)

const (
	defaultRecommendationLimit = 10
	maxRecommendationLimit     = 50
	statsTimeout               = 10 * time.Second
	defaultStatsWindow         = 7 * 24 * time.Hour
)

// InteractionStats aggregates the interaction log. It is nil when ClickHouse
// is not configured, and the stats routes answer 503.
type InteractionStats interface {
	GetInteractionCountsOverTime(ctx context.Context, interval string, start, end time.Time, kind string) ([]store.InteractionCountByTime, error)
	GetUniqueUsersOverTime(ctx context.Context, interval string, start, end time.Time) ([]store.InteractionCountByTime, error)
	GetTopEvents(ctx context.Context, kind string, start, end time.Time, limit uint64) ([]models.TopEventResult, error)
}

type RecommendationHandlers struct {
	engine   *recommend.Engine
	tracker  *recommend.Tracker
	reporter *recommend.Reporter
	stats    InteractionStats
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewRecommendationHandlers(engine *recommend.Engine, tracker *recommend.Tracker, reporter *recommend.Reporter, stats InteractionStats, m *metrics.Metrics, log *logger.Logger) *RecommendationHandlers {
	return &RecommendationHandlers{
		engine:   engine,
		tracker:  tracker,
		reporter: reporter,
		stats:    stats,
		metrics:  m,
		log:      log.With("component", "RecommendationHandlers"),
	}
}

func requestMeta(c *gin.Context) recommend.RequestMeta {
	return recommend.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// GetEvents serves GET /recommendations/events?limit=&page=.
func (h *RecommendationHandlers) GetEvents(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultRecommendationLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	limit = min(max(limit, 0), maxRecommendationLimit)

	userID := c.GetString(middleware.CtxUserID)
	start := time.Now()
	res, err := h.engine.GetEventRecommendations(c.Request.Context(), userID, limit, page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if h.metrics != nil {
		mode := "popular"
		if res.Personalized {
			mode = "personalized"
		}
		h.metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
		h.metrics.RecommendationsServed.WithLabelValues(mode).Add(float64(len(res.Events)))
	}
	h.tracker.DispatchShown(userID, len(res.Events))

	respondDataMeta(c, http.StatusOK, res.Events, gin.H{
		"total":        len(res.Events),
		"userId":       userID,
		"timestamp":    time.Now().UTC(),
		"personalized": res.Personalized,
		"categories":   res.Categories,
	})
}

func (h *RecommendationHandlers) TrackClick(c *gin.Context) {
	var req models.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.tracker.TrackClick(c.Request.Context(), c.GetString(middleware.CtxUserID), req.EventID, requestMeta(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Click tracked", "data": m})
}

func (h *RecommendationHandlers) TrackRegistration(c *gin.Context) {
	var req models.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.tracker.TrackRegistration(c.Request.Context(), c.GetString(middleware.CtxUserID), req.EventID, requestMeta(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Registration tracked", "data": m})
}

func (h *RecommendationHandlers) TrackImpressions(c *gin.Context) {
	var req models.TrackImpressionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.tracker.TrackImpressions(c.Request.Context(), c.GetString(middleware.CtxUserID), req.EventIDs, requestMeta(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"recorded": n})
}

func (h *RecommendationHandlers) GetAnalytics(c *gin.Context) {
	summary, err := h.reporter.Summary(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}

func (h *RecommendationHandlers) UpdatePreferences(c *gin.Context) {
	var req models.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	prefs, err := h.tracker.UpdatePreferences(c.Request.Context(), c.GetString(middleware.CtxUserID), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, prefs)
}

func (h *RecommendationHandlers) TrackSearch(c *gin.Context) {
	var req models.TrackSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.tracker.TrackSearch(c.Request.Context(), c.GetString(middleware.CtxUserID), req.Query, req.Filters, req.ResultsCount, requestMeta(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondMessage(c, http.StatusOK, "Search tracked")
}

func (h *RecommendationHandlers) GetInsights(c *gin.Context) {
	insights, err := h.reporter.Insights(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, insights)
}

type statsWindow struct {
	Interval string    `form:"interval"`
	Kind     string    `form:"kind" binding:"omitempty,interaction_kind"`
	Start    time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End      time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit    uint64    `form:"limit" binding:"omitempty,max=100"`
}

// bindStatsWindow defaults to the last seven days ending now.
func (h *RecommendationHandlers) bindStatsWindow(c *gin.Context) (statsWindow, bool) {
	var q statsWindow
	if h.stats == nil {
		respondFail(c, http.StatusServiceUnavailable, "unavailable", "Interaction log is not configured")
		return q, false
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return q, false
	}
	if q.End.IsZero() {
		q.End = time.Now().UTC()
	}
	if q.Start.IsZero() {
		q.Start = q.End.Add(-defaultStatsWindow)
	}
	if !q.Start.Before(q.End) {
		respondFail(c, http.StatusBadRequest, "validation_error", "start must be before end")
		return q, false
	}
	return q, true
}

// GetInteractionStats serves GET /recommendations/stats/interactions?interval=Day&kind=.
func (h *RecommendationHandlers) GetInteractionStats(c *gin.Context) {
	q, ok := h.bindStatsWindow(c)
	if !ok {
		return
	}
	if q.Interval == "" {
		q.Interval = "Day"
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	counts, err := h.stats.GetInteractionCountsOverTime(ctx, q.Interval, q.Start, q.End, q.Kind)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	users, err := h.stats.GetUniqueUsersOverTime(ctx, q.Interval, q.Start, q.End)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDataMeta(c, http.StatusOK, gin.H{"counts": counts, "uniqueUsers": users}, gin.H{
		"interval": q.Interval,
		"start":    q.Start,
		"end":      q.End,
	})
}

// GetTopEvents serves GET /recommendations/stats/top-events?limit=&kind=.
func (h *RecommendationHandlers) GetTopEvents(c *gin.Context) {
	q, ok := h.bindStatsWindow(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	top, err := h.stats.GetTopEvents(ctx, q.Kind, q.Start, q.End, q.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, top)
}
