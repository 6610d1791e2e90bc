// Package collab implements the collaboration proposal / counter-proposal
// negotiation workflow between communities, venues and brands.
package collab

import (
	"sort"

	"eventhub/api/models"
)

type Action string

const (
	ActionPropose        Action = "propose"
	ActionSaveDraft      Action = "save_draft"
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionDeliver        Action = "deliver"
	ActionReject         Action = "reject"
	ActionAutoReject     Action = "auto_reject"
	ActionCounter        Action = "counter"
	ActionBlockCounter   Action = "block_counter"
	ActionApproveCounter Action = "approve_counter"
	ActionRejectCounter  Action = "reject_counter"
	ActionAccept         Action = "accept"
	ActionDecline        Action = "decline"
	ActionCancel         Action = "cancel"
	ActionExpire         Action = "expire"
)

// Machine is the transition table. Each action maps a source status to its
// target; anything not listed is an invalid transition.
type Machine struct {
	table map[Action]map[models.CollaborationStatus]models.CollaborationStatus
}

// NewMachine builds the table. renegotiate controls where a proposer's decline
// of a counter leads: back to the recipient, or terminal rejection.
func NewMachine(renegotiate bool) *Machine {
	declineCounter := models.StatusRejected
	if renegotiate {
		declineCounter = models.StatusDeliveredToRecipient
	}
	m := &Machine{table: map[Action]map[models.CollaborationStatus]models.CollaborationStatus{
		ActionSubmit: {
			models.StatusDraft: models.StatusPendingAdminReview,
		},
		ActionApprove: {
			models.StatusPendingAdminReview: models.StatusApproved,
		},
		ActionDeliver: {
			models.StatusApproved: models.StatusDeliveredToRecipient,
		},
		ActionReject: {
			models.StatusPendingAdminReview: models.StatusRejected,
		},
		ActionAutoReject: {
			models.StatusDraft:              models.StatusRejected,
			models.StatusPendingAdminReview: models.StatusRejected,
		},
		ActionCounter: {
			models.StatusDeliveredToRecipient: models.StatusCountered,
		},
		// A blocked counter is recorded for audit and leaves the turn with the recipient.
		ActionBlockCounter: {
			models.StatusDeliveredToRecipient: models.StatusDeliveredToRecipient,
		},
		ActionApproveCounter: {
			models.StatusCountered: models.StatusDeliveredToProposer,
		},
		ActionRejectCounter: {
			models.StatusCountered: models.StatusDeliveredToRecipient,
		},
		ActionAccept: {
			models.StatusDeliveredToRecipient: models.StatusConfirmed,
			models.StatusDeliveredToProposer:  models.StatusConfirmed,
		},
		ActionDecline: {
			models.StatusDeliveredToRecipient: models.StatusRejected,
			models.StatusDeliveredToProposer:  declineCounter,
		},
		ActionCancel: {},
		ActionExpire: {},
	}}
	for _, s := range allStatuses {
		if !s.Terminal() {
			m.table[ActionCancel][s] = models.StatusCancelled
		}
		if AwaitsHuman(s) {
			m.table[ActionExpire][s] = models.StatusExpired
		}
	}
	return m
}

var allStatuses = []models.CollaborationStatus{
	models.StatusDraft,
	models.StatusPendingAdminReview,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusDeliveredToRecipient,
	models.StatusCountered,
	models.StatusDeliveredToProposer,
	models.StatusConfirmed,
	models.StatusCancelled,
	models.StatusExpired,
}

// AwaitsHuman reports whether a collaboration in s is waiting on someone and
// can therefore expire.
func AwaitsHuman(s models.CollaborationStatus) bool {
	switch s {
	case models.StatusDraft,
		models.StatusPendingAdminReview,
		models.StatusApproved,
		models.StatusDeliveredToRecipient,
		models.StatusCountered,
		models.StatusDeliveredToProposer:
		return true
	}
	return false
}

// Next returns the target of action from status.
func (m *Machine) Next(action Action, from models.CollaborationStatus) (models.CollaborationStatus, bool) {
	to, ok := m.table[action][from]
	return to, ok
}

// Sources lists the statuses from which action is allowed, sorted for stable SQL.
func (m *Machine) Sources(action Action) []models.CollaborationStatus {
	out := make([]models.CollaborationStatus, 0, len(m.table[action]))
	for s := range m.table[action] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Change builds a guarded StatusChange for action observed at status from.
// The guard pins the observed status so a concurrent transition makes the
// store update fail instead of double-applying.
func (m *Machine) Change(action Action, from models.CollaborationStatus) (models.StatusChange, bool) {
	to, ok := m.Next(action, from)
	if !ok {
		return models.StatusChange{}, false
	}
	return models.StatusChange{
		From:  []models.CollaborationStatus{from},
		To:    to,
		Audit: models.Transition{Action: string(action)},
	}, true
}
