package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/api/apperr"
	"eventhub/api/collab"
	"eventhub/api/logger"
	"eventhub/api/middleware"
	"eventhub/api/models"
)

type CollaborationHandlers struct {
	service *collab.Service
	log     *logger.Logger
}

func NewCollaborationHandlers(service *collab.Service, log *logger.Logger) *CollaborationHandlers {
	return &CollaborationHandlers{service: service, log: log.With("component", "CollaborationHandlers")}
}

func actorFrom(c *gin.Context) collab.Actor {
	role := c.GetString(middleware.CtxUserRole)
	if role == middleware.ServiceRole {
		return collab.SystemActor
	}
	return collab.Actor{ID: c.GetString(middleware.CtxUserID), Role: role}
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *CollaborationHandlers) Propose(c *gin.Context) {
	var req models.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	collaboration, err := h.service.Propose(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusCreated, collaboration)
}

func (h *CollaborationHandlers) Submit(c *gin.Context) {
	collaboration, err := h.service.Submit(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, collaboration)
}

func (h *CollaborationHandlers) SubmitCounter(c *gin.Context) {
	var req models.CounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	counter, err := h.service.SubmitCounter(c.Request.Context(), actorFrom(c), c.Param("id"), req.CounterData)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusCreated, counter)
}

func (h *CollaborationHandlers) Accept(c *gin.Context) {
	collaboration, err := h.service.Accept(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, collaboration)
}

// Decline serves PUT /collaborations/:id/reject for the party whose turn it is.
func (h *CollaborationHandlers) Decline(c *gin.Context) {
	collaboration, err := h.service.Decline(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, collaboration)
}

func (h *CollaborationHandlers) Cancel(c *gin.Context) {
	collaboration, err := h.service.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, collaboration)
}

func (h *CollaborationHandlers) Get(c *gin.Context) {
	collaboration, err := h.service.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, collaboration)
}

func (h *CollaborationHandlers) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, history)
}

// Queue serves GET /admin/collaborations?status=.
func (h *CollaborationHandlers) Queue(c *gin.Context) {
	status := models.CollaborationStatus(c.Query("status"))
	if status != "" && !knownStatus(status) {
		respondError(c, h.log, apperr.Validation("unknown status %q", status))
		return
	}
	items, err := h.service.ModerationQueue(c.Request.Context(), actorFrom(c), status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDataMeta(c, http.StatusOK, items, gin.H{"total": len(items)})
}

func knownStatus(s models.CollaborationStatus) bool {
	switch s {
	case models.StatusDraft, models.StatusPendingAdminReview, models.StatusApproved, models.StatusRejected,
		models.StatusDeliveredToRecipient, models.StatusCountered, models.StatusDeliveredToProposer,
		models.StatusConfirmed, models.StatusCancelled, models.StatusExpired:
		return true
	}
	return false
}

func (h *CollaborationHandlers) Approve(c *gin.Context) {
	h.adminDecision(c, h.service.Approve)
}

func (h *CollaborationHandlers) Reject(c *gin.Context) {
	h.adminDecision(c, h.service.Reject)
}

func (h *CollaborationHandlers) ApproveCounter(c *gin.Context) {
	h.counterDecision(c, h.service.ApproveCounter)
}

func (h *CollaborationHandlers) RejectCounter(c *gin.Context) {
	h.counterDecision(c, h.service.RejectCounter)
}

type collaborationDecision func(ctx context.Context, actor collab.Actor, id, adminNotes string) (*models.Collaboration, error)

type counterDecision func(ctx context.Context, actor collab.Actor, id, adminNotes string) (*models.Counter, error)

func (h *CollaborationHandlers) adminDecision(c *gin.Context, decide collaborationDecision) {
	var req models.AdminDecisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	collaboration, err := decide(c.Request.Context(), actorFrom(c), c.Param("id"), req.AdminNotes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, collaboration)
}

func (h *CollaborationHandlers) counterDecision(c *gin.Context, decide counterDecision) {
	var req models.AdminDecisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	counter, err := decide(c.Request.Context(), actorFrom(c), c.Param("id"), req.AdminNotes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondData(c, http.StatusOK, counter)
}
