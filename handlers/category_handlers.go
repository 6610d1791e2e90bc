package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/api/catalog"
	"eventhub/api/logger"
)

type CategoryHandlers struct {
	categories *catalog.Service
	log        *logger.Logger
}

func NewCategoryHandlers(categories *catalog.Service, log *logger.Logger) *CategoryHandlers {
	return &CategoryHandlers{categories: categories, log: log.With("component", "CategoryHandlers")}
}

func (h *CategoryHandlers) GetTrending(c *gin.Context) {
	limit, err := queryInt(c, "limit", catalog.DefaultLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	items, err := h.categories.GetTrending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDataMeta(c, http.StatusOK, items, gin.H{"windowInDays": catalog.TrendingWindowDays, "total": len(items)})
}

func (h *CategoryHandlers) GetPopular(c *gin.Context) {
	limit, err := queryInt(c, "limit", catalog.DefaultLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	items, err := h.categories.GetPopular(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDataMeta(c, http.StatusOK, items, gin.H{"total": len(items)})
}

func (h *CategoryHandlers) RecordView(c *gin.Context) {
	category, err := h.categories.IncrementView(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, category)
}

func (h *CategoryHandlers) RecordClick(c *gin.Context) {
	category, err := h.categories.IncrementClick(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, category)
}
