package models

import "time"

type CollaborationType string

const (
	CollabCommunityToVenue CollaborationType = "communityToVenue"
	CollabVenueToCommunity CollaborationType = "venueToCommunity"
	CollabBrandToCommunity CollaborationType = "brandToCommunity"
	CollabCommunityToBrand CollaborationType = "communityToBrand"
	CollabBrandToVenue     CollaborationType = "brandToVenue"
	CollabVenueToBrand     CollaborationType = "venueToBrand"
)

type PartyType string

const (
	PartyCommunity PartyType = "community"
	PartyVenue     PartyType = "venue"
	PartyBrand     PartyType = "brand"
)

var collaborationParties = map[CollaborationType][2]PartyType{
	CollabCommunityToVenue: {PartyCommunity, PartyVenue},
	CollabVenueToCommunity: {PartyVenue, PartyCommunity},
	CollabBrandToCommunity: {PartyBrand, PartyCommunity},
	CollabCommunityToBrand: {PartyCommunity, PartyBrand},
	CollabBrandToVenue:     {PartyBrand, PartyVenue},
	CollabVenueToBrand:     {PartyVenue, PartyBrand},
}

// Parties returns the proposer and recipient party types implied by t.
func (t CollaborationType) Parties() (proposer, recipient PartyType, ok bool) {
	p, ok := collaborationParties[t]
	return p[0], p[1], ok
}

type CollaborationStatus string

const (
	StatusDraft                CollaborationStatus = "draft"
	StatusPendingAdminReview   CollaborationStatus = "pending_admin_review"
	StatusApproved             CollaborationStatus = "approved"
	StatusRejected             CollaborationStatus = "rejected"
	StatusDeliveredToRecipient CollaborationStatus = "delivered_to_recipient"
	StatusCountered            CollaborationStatus = "countered"
	StatusDeliveredToProposer  CollaborationStatus = "delivered_to_proposer"
	StatusConfirmed            CollaborationStatus = "confirmed"
	StatusCancelled            CollaborationStatus = "cancelled"
	StatusExpired              CollaborationStatus = "expired"
)

func (s CollaborationStatus) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type CounterStatus string

const (
	CounterPendingAdminReview CounterStatus = "pending_admin_review"
	CounterApproved           CounterStatus = "approved"
	CounterRejected           CounterStatus = "rejected"
)

func (s CounterStatus) Terminal() bool {
	return s == CounterApproved || s == CounterRejected
}

type RiskLevel string

const (
	RiskClean   RiskLevel = "clean"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Rank orders risk levels for the moderation queue; unknown sorts with medium.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium, RiskUnknown:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

type Collaboration struct {
	ID              string              `json:"id"`
	Type            CollaborationType   `json:"type"`
	ProposerID      string              `json:"proposerId"`
	ProposerType    PartyType           `json:"proposerType"`
	RecipientID     string              `json:"recipientId"`
	RecipientType   PartyType           `json:"recipientType"`
	FormData        map[string]any      `json:"formData"`
	Status          CollaborationStatus `json:"status"`
	LatestCounterID string              `json:"latestCounterId,omitempty"`
	ComplianceFlags []string            `json:"complianceFlags"`
	RiskLevel       RiskLevel           `json:"riskLevel"`
	AdminNotes      string              `json:"adminNotes,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	SubmittedAt     *time.Time          `json:"submittedAt,omitempty"`
	ReviewedAt      *time.Time          `json:"reviewedAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	RespondedAt     *time.Time          `json:"respondedAt,omitempty"`
	ClosedAt        *time.Time          `json:"closedAt,omitempty"`

	// LatestCounter is populated on reads that ask for it.
	LatestCounter *Counter `json:"latestCounter,omitempty"`
}

type FieldDecision string

const (
	FieldAccept FieldDecision = "accept"
	FieldModify FieldDecision = "modify"
	FieldReject FieldDecision = "reject"
)

type FieldResponse struct {
	Decision      FieldDecision `json:"decision" binding:"required,oneof=accept modify reject"`
	ModifiedValue string        `json:"modifiedValue,omitempty" binding:"max=2000"`
	Note          string        `json:"note,omitempty" binding:"max=2000"`
}

type CommercialCounter struct {
	PricingModel string `json:"pricingModel" binding:"omitempty,max=60"`
	Value        string `json:"value" binding:"omitempty,max=200"`
	Note         string `json:"note,omitempty" binding:"max=2000"`
}

type Counter struct {
	ID                string                   `json:"id"`
	CollaborationID   string                   `json:"collaborationId"`
	SubmittedBy       string                   `json:"submittedBy"`
	FieldResponses    map[string]FieldResponse `json:"fieldResponses"`
	HouseRules        []string                 `json:"houseRules"`
	CommercialCounter *CommercialCounter       `json:"commercialCounter,omitempty"`
	GeneralNotes      string                   `json:"generalNotes,omitempty"`
	Status            CounterStatus            `json:"status"`
	ComplianceFlags   []string                 `json:"complianceFlags"`
	RiskLevel         RiskLevel                `json:"riskLevel"`
	AdminNotes        string                   `json:"adminNotes,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
	ReviewedAt        *time.Time               `json:"reviewedAt,omitempty"`
}

// Transition is one append-only audit record.
type Transition struct {
	ID              int64               `json:"id"`
	CollaborationID string              `json:"collaborationId"`
	CounterID       string              `json:"counterId,omitempty"`
	Action          string              `json:"action"`
	ActorID         string              `json:"actorId"`
	ActorRole       string              `json:"actorRole"`
	FromStatus      CollaborationStatus `json:"fromStatus,omitempty"`
	ToStatus        CollaborationStatus `json:"toStatus"`
	Note            string              `json:"note,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

type ProposeRequest struct {
	Type          CollaborationType `json:"type" binding:"required,oneof=communityToVenue venueToCommunity brandToCommunity communityToBrand brandToVenue venueToBrand"`
	RecipientID   string            `json:"recipientId" binding:"required,max=64"`
	RecipientType PartyType         `json:"recipientType" binding:"omitempty,oneof=community venue brand"`
	FormData      map[string]any    `json:"formData" binding:"required"`
	Draft         bool              `json:"draft"`
}

type CounterData struct {
	FieldResponses    map[string]FieldResponse `json:"fieldResponses" binding:"omitempty,max=50,dive"`
	HouseRules        []string                 `json:"houseRules" binding:"omitempty,max=30,dive,max=500"`
	CommercialCounter *CommercialCounter       `json:"commercialCounter"`
	GeneralNotes      string                   `json:"generalNotes" binding:"max=5000"`
}

type CounterRequest struct {
	CounterData CounterData `json:"counterData" binding:"required"`
}

type AdminDecisionRequest struct {
	AdminNotes string `json:"adminNotes" binding:"max=2000"`
}

// CollaborationHistory is the full audit view of one collaboration.
type CollaborationHistory struct {
	Collaboration *Collaboration `json:"collaboration"`
	Counters      []Counter      `json:"counters"`
	Transitions   []Transition   `json:"transitions"`
}

type TimestampField string

const (
	StampSubmitted TimestampField = "submitted_at"
	StampReviewed  TimestampField = "reviewed_at"
	StampDelivered TimestampField = "delivered_at"
	StampResponded TimestampField = "responded_at"
	StampClosed    TimestampField = "closed_at"
)

// StatusChange is a guarded status update that stores apply atomically together
// with its audit record. The update only happens when the current status is in
// From (and, if set, the record was last updated before UpdatedBefore).
type StatusChange struct {
	From            []CollaborationStatus
	To              CollaborationStatus
	At              time.Time
	Stamps          []TimestampField
	AdminNotes      *string
	LatestCounterID *string
	Compliance      *ComplianceStamp
	UpdatedBefore   *time.Time
	Audit           Transition
}

// ComplianceStamp replaces the stored scan outcome, e.g. when a draft is submitted.
type ComplianceStamp struct {
	RiskLevel RiskLevel
	Flags     []string
}

// Allows reports whether the guard admits a record in status s updated at updatedAt.
func (c StatusChange) Allows(s CollaborationStatus, updatedAt time.Time) bool {
	if c.UpdatedBefore != nil && !updatedAt.Before(*c.UpdatedBefore) {
		return false
	}
	for _, f := range c.From {
		if f == s {
			return true
		}
	}
	return false
}

// ApplyTo mutates c in memory the way a store applies the change.
func (c StatusChange) ApplyTo(collab *Collaboration) {
	collab.Status = c.To
	collab.UpdatedAt = c.At
	if c.AdminNotes != nil {
		collab.AdminNotes = *c.AdminNotes
	}
	if c.LatestCounterID != nil {
		collab.LatestCounterID = *c.LatestCounterID
	}
	if c.Compliance != nil {
		collab.RiskLevel = c.Compliance.RiskLevel
		collab.ComplianceFlags = append([]string{}, c.Compliance.Flags...)
	}
	for _, s := range c.Stamps {
		at := c.At
		switch s {
		case StampSubmitted:
			collab.SubmittedAt = &at
		case StampReviewed:
			collab.ReviewedAt = &at
		case StampDelivered:
			collab.DeliveredAt = &at
		case StampResponded:
			collab.RespondedAt = &at
		case StampClosed:
			collab.ClosedAt = &at
		}
	}
}
