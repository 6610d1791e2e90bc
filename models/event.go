package models

import (
	"math"
	"time"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

type Event struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	Categories          []string    `json:"categories"`
	City                string      `json:"city,omitempty"`
	State               string      `json:"state,omitempty"`
	Latitude            *float64    `json:"latitude,omitempty"`
	Longitude           *float64    `json:"longitude,omitempty"`
	Date                time.Time   `json:"date"`
	Status              EventStatus `json:"status"`
	CurrentParticipants int         `json:"currentParticipants"`
	MaxParticipants     int         `json:"maxParticipants"`
	Price               float64     `json:"price"`
	CreatedAt           time.Time   `json:"createdAt"`
}

type GeoBoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

const earthRadiusKm = 6371.0

// BoundingBoxAround approximates a square of radiusKm around a point.
func BoundingBoxAround(lat, lng, radiusKm float64) GeoBoundingBox {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	dLng := dLat / cos
	return GeoBoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: math.Max(lng-dLng, -180),
		MaxLng: math.Min(lng+dLng, 180),
	}
}

func (b GeoBoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// EventFilter mirrors the Event Catalog query contract.
type EventFilter struct {
	Status     EventStatus
	Categories []string
	City       string
	DateFrom   *time.Time // inclusive
	DateTo     *time.Time // exclusive
	BBox       *GeoBoundingBox
}

// Matches evaluates the filter in memory.
func (f EventFilter) Matches(e Event) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if len(f.Categories) > 0 && !intersects(f.Categories, e.Categories) {
		return false
	}
	if f.City != "" && e.City != f.City {
		return false
	}
	if f.DateFrom != nil && e.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && !e.Date.Before(*f.DateTo) {
		return false
	}
	if f.BBox != nil {
		if e.Latitude == nil || e.Longitude == nil || !f.BBox.Contains(*e.Latitude, *e.Longitude) {
			return false
		}
	}
	return true
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

type EventSort int

const (
	// SortPopular: currentParticipants desc, then date asc.
	SortPopular EventSort = iota
	// SortUpcoming: date asc, then createdAt desc.
	SortUpcoming
	// SortPast: date desc, then currentParticipants desc.
	SortPast
)

// Less orders two events according to s.
func (s EventSort) Less(a, b Event) bool {
	switch s {
	case SortUpcoming:
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	case SortPast:
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CurrentParticipants > b.CurrentParticipants
	default:
		if a.CurrentParticipants != b.CurrentParticipants {
			return a.CurrentParticipants > b.CurrentParticipants
		}
		return a.Date.Before(b.Date)
	}
}

type InteractionKind string

const (
	InteractionImpression InteractionKind = "impression"
	InteractionClick      InteractionKind = "click"
	InteractionRegister   InteractionKind = "register"
	// InteractionSearch is only written to the interaction log.
	InteractionSearch InteractionKind = "search"
)

// Weight is the affinity added to each category of the event. Strictly increasing
// from impression to register.
func (k InteractionKind) Weight() float64 {
	switch k {
	case InteractionImpression:
		return 0.1
	case InteractionClick:
		return 1.0
	case InteractionRegister:
		return 3.0
	default:
		return 0
	}
}

func (k InteractionKind) Valid() bool {
	return k.Weight() > 0
}

// InteractionRecord is one row of the ClickHouse interaction log.
type InteractionRecord struct {
	RecordID     string          `json:"recordId"`
	Kind         InteractionKind `json:"kind"`
	UserID       string          `json:"userId"`
	EventID      string          `json:"eventId"`
	Categories   []string        `json:"categories"`
	City         string          `json:"city,omitempty"`
	Query        string          `json:"query,omitempty"`
	ResultsCount int             `json:"resultsCount"`
	Timestamp    time.Time       `json:"timestamp"`
	IPAddress    string          `json:"ipAddress,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
}

type TopEventResult struct {
	EventID string `json:"eventId"`
	Count   uint64 `json:"count"`
}

type TrackEventRequest struct {
	EventID string `json:"eventId" binding:"required,max=64"`
}

type TrackImpressionsRequest struct {
	EventIDs []string `json:"eventIds" binding:"required,min=1,max=100,dive,required,max=64"`
}

type TrackSearchRequest struct {
	Query        string            `json:"query" binding:"required,max=200"`
	Filters      map[string]string `json:"filters" binding:"omitempty,max=20"`
	ResultsCount int               `json:"resultsCount" binding:"gte=0"`
}
