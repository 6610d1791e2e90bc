package models

import (
	"sort"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// MaxSearchHistory bounds UserAnalytics.SearchHistory; the oldest entries are evicted first.
	MaxSearchHistory = 50
)

type SignupRequest struct {
	Email     string   `json:"email" binding:"required,email"`
	Password  string   `json:"password" binding:"required,min=8"`
	Name      string   `json:"name" binding:"required,max=120"`
	Interests []string `json:"interests" binding:"omitempty,max=20,dive,required,max=60"`
	City      string   `json:"city" binding:"omitempty,max=80"`
	State     string   `json:"state" binding:"omitempty,max=80"`
	Latitude  *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" binding:"omitempty,longitude"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type Location struct {
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the location can anchor a geographic filter.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

type PriceRange struct {
	Min float64 `json:"min" binding:"gte=0"`
	Max float64 `json:"max" binding:"gtefield=Min"`
}

type NotificationSettings struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

type Preferences struct {
	MaxTravelDistance    float64              `json:"maxTravelDistance"`
	PreferredEventTimes  []string             `json:"preferredEventTimes"`
	PriceRange           PriceRange           `json:"priceRange"`
	NotificationSettings NotificationSettings `json:"notificationSettings"`
}

// DefaultPreferences is what every new user starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		MaxTravelDistance:    50,
		PreferredEventTimes:  []string{},
		NotificationSettings: NotificationSettings{Email: true, Push: true},
	}
}

// UpdatePreferencesRequest carries a partial update; nil fields are left untouched.
type UpdatePreferencesRequest struct {
	MaxTravelDistance    *float64              `json:"maxTravelDistance" binding:"omitempty,gte=0,lte=1000"`
	PreferredEventTimes  []string              `json:"preferredEventTimes" binding:"omitempty,max=4,dive,event_time"`
	PriceRange           *PriceRange           `json:"priceRange"`
	NotificationSettings *NotificationSettings `json:"notificationSettings"`
}

// Apply merges the request into p.
func (r UpdatePreferencesRequest) Apply(p Preferences) Preferences {
	if r.MaxTravelDistance != nil {
		p.MaxTravelDistance = *r.MaxTravelDistance
	}
	if r.PreferredEventTimes != nil {
		p.PreferredEventTimes = append([]string{}, r.PreferredEventTimes...)
	}
	if r.PriceRange != nil {
		p.PriceRange = *r.PriceRange
	}
	if r.NotificationSettings != nil {
		p.NotificationSettings = *r.NotificationSettings
	}
	return p
}

type User struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	HashedPassword []byte        `json:"-"`
	Name           string        `json:"name"`
	Role           string        `json:"role"`
	Interests      []string      `json:"interests"`
	Location       Location      `json:"location"`
	Preferences    Preferences   `json:"preferences"`
	Analytics      UserAnalytics `json:"analytics"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewUser returns a user with every analytics collection initialized.
func NewUser(id, email, name, role string, hashedPassword []byte, now time.Time) *User {
	return &User{
		ID:             id,
		Email:          strings.ToLower(strings.TrimSpace(email)),
		HashedPassword: hashedPassword,
		Name:           name,
		Role:           role,
		Interests:      []string{},
		Preferences:    DefaultPreferences(),
		Analytics:      NewUserAnalytics(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

type CategoryPreference struct {
	Category        string    `json:"category"`
	Score           float64   `json:"score"`
	LastInteraction time.Time `json:"lastInteraction"`
}

type LocationVisit struct {
	City      string    `json:"city"`
	State     string    `json:"state"`
	Frequency int       `json:"frequency"`
	LastSeen  time.Time `json:"lastSeen"`
}

type SearchEntry struct {
	Query        string            `json:"query"`
	Filters      map[string]string `json:"filters"`
	ResultsCount int               `json:"resultsCount"`
	Timestamp    time.Time         `json:"timestamp"`
}

type EventRegistration struct {
	EventID      string    `json:"eventId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type CommunityMembership struct {
	CommunityID string    `json:"communityId"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type RecommendationMetrics struct {
	TotalRecommendationsShown int64      `json:"totalRecommendationsShown"`
	RecommendationsClicked    int64      `json:"recommendationsClicked"`
	RecommendationsRegistered int64      `json:"recommendationsRegistered"`
	ClickThroughRate          float64    `json:"clickThroughRate"`
	ConversionRate            float64    `json:"conversionRate"`
	LastCalculated            *time.Time `json:"lastCalculated,omitempty"`
}

// Recalculated derives both rates from the raw counters. Rates are clamped to [0,1]
// and are 0 when nothing has been shown.
func (m RecommendationMetrics) Recalculated(now time.Time) RecommendationMetrics {
	m.ClickThroughRate = ratio(m.RecommendationsClicked, m.TotalRecommendationsShown)
	m.ConversionRate = ratio(m.RecommendationsRegistered, m.TotalRecommendationsShown)
	m.LastCalculated = &now
	return m
}

func ratio(num, den int64) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	r := float64(num) / float64(den)
	if r > 1 {
		return 1
	}
	return r
}

type UserAnalytics struct {
	CategoryPreferences   []CategoryPreference  `json:"categoryPreferences"`
	LocationHistory       []LocationVisit       `json:"locationHistory"`
	SearchHistory         []SearchEntry         `json:"searchHistory"`
	RecommendationMetrics RecommendationMetrics `json:"recommendationMetrics"`
	RegisteredEvents      []EventRegistration   `json:"registeredEvents"`
	JoinedCommunities     []CommunityMembership `json:"joinedCommunities"`
}

func NewUserAnalytics() UserAnalytics {
	return UserAnalytics{
		CategoryPreferences: []CategoryPreference{},
		LocationHistory:     []LocationVisit{},
		SearchHistory:       []SearchEntry{},
		RegisteredEvents:    []EventRegistration{},
		JoinedCommunities:   []CommunityMembership{},
	}
}

// UpsertCategoryPreference adds delta to the entry for category, creating it if needed.
// The returned slice never holds two entries for the same category.
func UpsertCategoryPreference(prefs []CategoryPreference, category string, delta float64, at time.Time) []CategoryPreference {
	for i := range prefs {
		if prefs[i].Category == category {
			prefs[i].Score += delta
			if at.After(prefs[i].LastInteraction) {
				prefs[i].LastInteraction = at
			}
			return prefs
		}
	}
	return append(prefs, CategoryPreference{Category: category, Score: delta, LastInteraction: at})
}

// UpsertLocationVisit bumps the frequency for city or starts a new entry.
func UpsertLocationVisit(history []LocationVisit, city, state string, at time.Time) []LocationVisit {
	for i := range history {
		if strings.EqualFold(history[i].City, city) {
			history[i].Frequency++
			history[i].LastSeen = at
			if state != "" {
				history[i].State = state
			}
			return history
		}
	}
	return append(history, LocationVisit{City: city, State: state, Frequency: 1, LastSeen: at})
}

// AppendSearch appends entry and evicts the oldest entries beyond MaxSearchHistory.
func AppendSearch(history []SearchEntry, entry SearchEntry) []SearchEntry {
	history = append(history, entry)
	if over := len(history) - MaxSearchHistory; over > 0 {
		history = append([]SearchEntry{}, history[over:]...)
	}
	return history
}

// TopCategoryPreferences returns up to n preferences ordered by descending score.
func TopCategoryPreferences(prefs []CategoryPreference, n int) []CategoryPreference {
	out := append([]CategoryPreference{}, prefs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
