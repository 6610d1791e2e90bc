package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"eventhub/api/catalog"
	"eventhub/api/collab"
	"eventhub/api/compliance"
	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/middleware"
	"eventhub/api/models"
	"eventhub/api/notify"
	"eventhub/api/recommend"
	"eventhub/api/store/memory"
	"eventhub/api/tasks"
	"eventhub/api/utils"
)

const serviceKey = "svc-test-key"

type testServer struct {
	router   *gin.Engine
	store    *memory.Store
	jwt      *utils.JWTManager
	recorder *notify.Recorder
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, policy collab.Policy) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		t.Fatalf("RegisterValidators: %v", err)
	}
	jwt, err := utils.NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	log := logger.Nop()
	mem := memory.New()
	m := metrics.New()
	rec := &notify.Recorder{}
	inline := tasks.Inline{Log: log}

	engine := recommend.NewEngine(mem, mem, recommend.EngineConfig{TopCategories: 5})
	tracker := recommend.NewTracker(mem, mem, mem, nil, inline, m, log)
	reporter := recommend.NewReporter(mem, mem, engine)
	categories := catalog.NewService(mem, nil, 0, m, log)
	collabs := collab.NewService(mem, compliance.RegexScanner{}, rec, inline, m, log, policy)

	r := gin.New()
	r.Use(middleware.RequestLogger(log, m))
	RegisterRoutes(r, Router{
		Auth:            NewAuthHandlers(mem, jwt, func(email string) bool { return email == "boss@example.com" }, log),
		Recommendations: NewRecommendationHandlers(engine, tracker, reporter, nil, m, log),
		Categories:      NewCategoryHandlers(categories, log),
		Collaborations:  NewCollaborationHandlers(collabs, log),
		Health:          NewHealthHandlers(map[string]Pinger{"store": mem}),
		Metrics:         m.Handler(),
		Authenticated:   middleware.AuthRequired(jwt, serviceKey, log),
		AdminOnly:       middleware.RequireAdmin(),
	})
	return &testServer{router: r, store: mem, jwt: jwt, recorder: rec, metrics: m}
}

// addUser stores a user and returns a bearer token for it.
func (s *testServer) addUser(t *testing.T, id, role string) string {
	t.Helper()
	u := models.NewUser(id, id+"@example.com", id, role, nil, time.Now().UTC())
	if err := s.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	token, err := s.jwt.Generate(id, u.Email, role)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Message string          `json:"message"`
	Error   struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Flags   []string `json:"flags"`
	} `json:"error"`
}

type auth func(*http.Request)

func bearer(token string) auth {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func apiKey(r *http.Request) { r.Header.Set("X-API-KEY", serviceKey) }

func noAuth(*http.Request) {}

func (s *testServer) do(t *testing.T, method, path string, body any, a auth) (int, envelope, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	a(req)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env, w
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestSignupLoginAndRecommendations(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	now := time.Now().UTC()
	s.store.PutEvent(models.Event{ID: "e-small", Title: "Small", Categories: []string{"music"}, Date: now.Add(48 * time.Hour), Status: models.EventStatusPublished, CurrentParticipants: 5, CreatedAt: now})
	s.store.PutEvent(models.Event{ID: "e-big", Title: "Big", Categories: []string{"tech"}, Date: now.Add(72 * time.Hour), Status: models.EventStatusPublished, CurrentParticipants: 90, CreatedAt: now})

	code, env, _ := s.do(t, http.MethodPost, "/api/signup", gin.H{"email": "new@example.com", "password": "longenough", "name": "New"}, noAuth)
	if code != http.StatusCreated || !env.Success {
		t.Fatalf("signup = %d %+v", code, env)
	}
	user := decode[models.User](t, env)
	if user.Role != models.RoleUser || user.Analytics.RecommendationMetrics.TotalRecommendationsShown != 0 {
		t.Fatalf("unexpected user %+v", user)
	}

	code, _, _ = s.do(t, http.MethodPost, "/api/signup", gin.H{"email": "new@example.com", "password": "longenough", "name": "Dup"}, noAuth)
	if code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d, want 409", code)
	}

	code, _, _ = s.do(t, http.MethodPost, "/api/login", gin.H{"email": "new@example.com", "password": "wrong-password"}, noAuth)
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", code)
	}

	code, env, w := s.do(t, http.MethodPost, "/api/login", gin.H{"email": "new@example.com", "password": "longenough"}, noAuth)
	if code != http.StatusOK {
		t.Fatalf("login = %d %+v", code, env)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.AuthCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("missing HttpOnly auth cookie: %v", w.Result().Cookies())
	}

	code, env, _ = s.do(t, http.MethodGet, "/recommendations/events?limit=5", nil, func(r *http.Request) { r.AddCookie(cookie) })
	if code != http.StatusOK {
		t.Fatalf("recommendations = %d %+v", code, env)
	}
	events := decode[[]models.Event](t, env)
	if len(events) != 2 || events[0].ID != "e-big" {
		t.Fatalf("cold start order = %+v", events)
	}
	if env.Meta["userId"] != user.ID || env.Meta["total"] != float64(2) {
		t.Fatalf("meta = %+v", env.Meta)
	}

	// Shown counter is updated by the dispatched task.
	stored, err := s.store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got := stored.Analytics.RecommendationMetrics.TotalRecommendationsShown; got != 2 {
		t.Fatalf("shown = %d, want 2", got)
	}
}

func TestAdminEmailGetsAdminRole(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	code, env, _ := s.do(t, http.MethodPost, "/api/signup", gin.H{"email": "boss@example.com", "password": "longenough", "name": "Boss"}, noAuth)
	if code != http.StatusCreated {
		t.Fatalf("signup = %d", code)
	}
	if u := decode[models.User](t, env); u.Role != models.RoleAdmin {
		t.Fatalf("role = %q", u.Role)
	}
}

func TestTrackingEndpoints(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	token := s.addUser(t, "u1", models.RoleUser)
	now := time.Now().UTC()
	s.store.PutEvent(models.Event{ID: "e1", Categories: []string{"music"}, City: "Pune", Date: now.Add(24 * time.Hour), Status: models.EventStatusPublished, CreatedAt: now})

	code, env, _ := s.do(t, http.MethodPost, "/recommendations/track/click", gin.H{"eventId": "e1"}, bearer(token))
	if code != http.StatusOK || env.Message != "Click tracked" {
		t.Fatalf("click = %d %+v", code, env)
	}
	code, _, _ = s.do(t, http.MethodPost, "/recommendations/track/register", gin.H{"eventId": "missing"}, bearer(token))
	if code != http.StatusNotFound {
		t.Fatalf("register unknown event = %d, want 404", code)
	}
	code, env, _ = s.do(t, http.MethodPost, "/recommendations/track/impression", gin.H{"eventIds": []string{"e1", "e1", "missing"}}, bearer(token))
	if code != http.StatusOK {
		t.Fatalf("impressions = %d %+v", code, env)
	}
	if got := decode[map[string]int](t, env)["recorded"]; got != 1 {
		t.Fatalf("recorded = %d, want 1", got)
	}
	code, _, _ = s.do(t, http.MethodPost, "/recommendations/search/track", gin.H{"query": "jazz", "resultsCount": 3}, bearer(token))
	if code != http.StatusOK {
		t.Fatalf("search = %d", code)
	}

	code, env, _ = s.do(t, http.MethodGet, "/recommendations/analytics", nil, bearer(token))
	if code != http.StatusOK {
		t.Fatalf("analytics = %d", code)
	}
	summary := decode[recommend.AnalyticsSummary](t, env)
	if len(summary.CategoryPreferences) != 1 || summary.CategoryPreferences[0].Category != "music" {
		t.Fatalf("category preferences = %+v", summary.CategoryPreferences)
	}
	if len(summary.RecentActivity.Searches) != 1 {
		t.Fatalf("searches = %+v", summary.RecentActivity.Searches)
	}

	code, _, _ = s.do(t, http.MethodGet, "/recommendations/insights", nil, bearer(token))
	if code != http.StatusOK {
		t.Fatalf("insights = %d", code)
	}
}

func TestPreferencesValidation(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	token := s.addUser(t, "u1", models.RoleUser)

	code, _, _ := s.do(t, http.MethodPost, "/recommendations/preferences", gin.H{"preferredEventTimes": []string{"midnight"}}, bearer(token))
	if code != http.StatusBadRequest {
		t.Fatalf("bad event time = %d, want 400", code)
	}
	code, env, _ := s.do(t, http.MethodPost, "/recommendations/preferences", gin.H{"preferredEventTimes": []string{"evening"}, "maxTravelDistance": 25}, bearer(token))
	if code != http.StatusOK {
		t.Fatalf("preferences = %d %+v", code, env)
	}
	prefs := decode[models.Preferences](t, env)
	if prefs.MaxTravelDistance != 25 || len(prefs.PreferredEventTimes) != 1 || !prefs.NotificationSettings.Email {
		t.Fatalf("prefs = %+v", prefs)
	}
}

func TestAuthAndAdminGuards(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	token := s.addUser(t, "u1", models.RoleUser)

	if code, env, _ := s.do(t, http.MethodGet, "/recommendations/events", nil, noAuth); code != http.StatusUnauthorized || env.Error.Code != "unauthorized" {
		t.Fatalf("anonymous = %d %+v", code, env)
	}
	if code, _, _ := s.do(t, http.MethodGet, "/admin/collaborations", nil, bearer(token)); code != http.StatusForbidden {
		t.Fatalf("user on admin queue = %d, want 403", code)
	}
	if code, _, _ := s.do(t, http.MethodGet, "/admin/collaborations?status=bogus", nil, apiKey); code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d, want 400", code)
	}
	if code, env, _ := s.do(t, http.MethodGet, "/recommendations/stats/interactions", nil, apiKey); code != http.StatusServiceUnavailable {
		t.Fatalf("stats without log = %d %+v", code, env)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	now := time.Now().UTC()
	s.store.PutCategory(*models.NewCategory("c1", "Music", "music", now))
	s.store.PutCategory(*models.NewCategory("c2", "Tech", "tech", now))

	for i := 0; i < 2; i++ {
		if code, _, _ := s.do(t, http.MethodPost, "/categories/c2/view", nil, noAuth); code != http.StatusOK {
			t.Fatalf("view = %d", code)
		}
	}
	if code, _, _ := s.do(t, http.MethodPost, "/categories/missing/view", nil, noAuth); code != http.StatusNotFound {
		t.Fatalf("unknown category view = %d, want 404", code)
	}
	if code, _, _ := s.do(t, http.MethodPost, "/categories/c1/click", nil, noAuth); code != http.StatusOK {
		t.Fatalf("click = %d", code)
	}

	code, env, _ := s.do(t, http.MethodGet, "/categories/trending?limit=1", nil, noAuth)
	if code != http.StatusOK {
		t.Fatalf("trending = %d", code)
	}
	trending := decode[[]models.TrendingCategory](t, env)
	if len(trending) != 1 || trending[0].Category.ID != "c2" || trending[0].RecentViews != 2 {
		t.Fatalf("trending = %+v", trending)
	}

	code, env, _ = s.do(t, http.MethodGet, "/categories/popular", nil, noAuth)
	if code != http.StatusOK {
		t.Fatalf("popular = %d", code)
	}
	if popular := decode[[]models.Category](t, env); len(popular) != 2 || popular[0].ID != "c2" {
		t.Fatalf("popular = %+v", popular)
	}
}

func TestCollaborationNegotiationOverHTTP(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	proposer := s.addUser(t, "community-1", models.RoleUser)
	recipient := s.addUser(t, "venue-1", models.RoleUser)

	code, env, _ := s.do(t, http.MethodPost, "/collaborations/propose", gin.H{
		"type":        "communityToVenue",
		"recipientId": "venue-1",
		"formData":    gin.H{"eventType": "Concert", "pricing": gin.H{"value": "₹50000"}},
	}, bearer(proposer))
	if code != http.StatusCreated {
		t.Fatalf("propose = %d %+v", code, env)
	}
	c := decode[models.Collaboration](t, env)
	if c.Status != models.StatusPendingAdminReview {
		t.Fatalf("status = %q", c.Status)
	}
	id := c.ID

	code, env, _ = s.do(t, http.MethodPut, "/collaborations/"+id+"/accept", nil, bearer(recipient))
	if code != http.StatusConflict || env.Error.Code != "invalid_state_transition" {
		t.Fatalf("early accept = %d %+v", code, env)
	}

	code, env, _ = s.do(t, http.MethodGet, "/admin/collaborations", nil, apiKey)
	if code != http.StatusOK || len(decode[[]models.Collaboration](t, env)) != 1 {
		t.Fatalf("queue = %d %s", code, env.Data)
	}

	code, env, _ = s.do(t, http.MethodPut, "/admin/collaborations/"+id+"/approve", gin.H{"adminNotes": "looks fine"}, apiKey)
	if code != http.StatusOK {
		t.Fatalf("approve = %d %+v", code, env)
	}
	if got := decode[models.Collaboration](t, env).Status; got != models.StatusDeliveredToRecipient {
		t.Fatalf("after approve = %q", got)
	}

	code, env, _ = s.do(t, http.MethodPost, "/collaborations/"+id+"/counter", gin.H{
		"counterData": gin.H{
			"fieldResponses":    gin.H{"eventType": gin.H{"decision": "accept"}},
			"houseRules":        []string{"No outside food"},
			"commercialCounter": gin.H{"pricingModel": "fixed", "value": "₹65000"},
		},
	}, bearer(recipient))
	if code != http.StatusCreated {
		t.Fatalf("counter = %d %+v", code, env)
	}
	counter := decode[models.Counter](t, env)
	code, env, _ = s.do(t, http.MethodGet, "/collaborations/"+id, nil, bearer(proposer))
	if code != http.StatusOK || decode[models.Collaboration](t, env).Status != models.StatusCountered {
		t.Fatalf("after counter = %d %s", code, env.Data)
	}

	code, _, _ = s.do(t, http.MethodPut, "/admin/collaborations/counters/"+counter.ID+"/approve", nil, apiKey)
	if code != http.StatusOK {
		t.Fatalf("approve counter = %d", code)
	}

	code, env, _ = s.do(t, http.MethodGet, "/collaborations/"+id, nil, bearer(proposer))
	got := decode[models.Collaboration](t, env)
	if code != http.StatusOK || got.Status != models.StatusDeliveredToProposer || got.LatestCounter == nil {
		t.Fatalf("get = %d %+v", code, got)
	}
	if cc := got.LatestCounter.CommercialCounter; cc == nil || cc.Value != "₹65000" {
		t.Fatalf("commercial counter = %+v", cc)
	}

	code, env, _ = s.do(t, http.MethodPut, "/collaborations/"+id+"/accept", nil, bearer(proposer))
	if code != http.StatusOK || decode[models.Collaboration](t, env).Status != models.StatusConfirmed {
		t.Fatalf("accept = %d %s", code, env.Data)
	}

	code, env, _ = s.do(t, http.MethodGet, "/collaborations/"+id+"/history", nil, bearer(recipient))
	if code != http.StatusOK {
		t.Fatalf("history = %d", code)
	}
	history := decode[models.CollaborationHistory](t, env)
	var actions []string
	for _, tr := range history.Transitions {
		actions = append(actions, tr.Action)
	}
	want := []string{"propose", "approve", "deliver", "counter", "approve_counter", "accept"}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("actions = %v, want %v", actions, want)
		}
	}

	stranger := s.addUser(t, "someone", models.RoleUser)
	if code, _, _ := s.do(t, http.MethodGet, "/collaborations/"+id, nil, bearer(stranger)); code != http.StatusForbidden {
		t.Fatalf("stranger get = %d, want 403", code)
	}
	if len(s.recorder.Sent()) == 0 {
		t.Fatal("expected notifications to be dispatched")
	}
}

func TestBlockPolicyReturnsUnprocessable(t *testing.T) {
	s := newTestServer(t, collab.Policy{BlockHighRisk: true})
	proposer := s.addUser(t, "community-1", models.RoleUser)

	code, env, _ := s.do(t, http.MethodPost, "/collaborations/propose", gin.H{
		"type":        "communityToVenue",
		"recipientId": "venue-1",
		"formData":    gin.H{"contact": "reach me on whatsapp"},
	}, bearer(proposer))
	if code != http.StatusUnprocessableEntity || env.Error.Code != "compliance_rejected" {
		t.Fatalf("blocked propose = %d %+v", code, env)
	}
	if len(env.Error.Flags) == 0 {
		t.Fatal("expected compliance flags in error body")
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	if code, env, _ := s.do(t, http.MethodGet, "/healthz", nil, noAuth); code != http.StatusOK || !env.Success {
		t.Fatalf("healthz = %d %+v", code, env)
	}

	h := NewHealthHandlers(map[string]Pinger{"down": PingFunc(func(context.Context) error { return context.DeadlineExceeded })})
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing dependency = %d, want 503", w.Code)
	}
}

func TestLoginAcceptsStoredHash(t *testing.T) {
	s := newTestServer(t, collab.Policy{})
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.NewUser("u9", "Mixed@Example.com", "Mixed", models.RoleUser, hash, time.Now())
	if err := s.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	code, env, _ := s.do(t, http.MethodPost, "/api/login", gin.H{"email": "mixed@example.com", "password": "password123"}, noAuth)
	if code != http.StatusOK {
		t.Fatalf("login = %d %+v", code, env)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil || body.Token == "" {
		t.Fatalf("token missing: %s", env.Data)
	}
	claims, err := s.jwt.Validate(body.Token)
	if err != nil || claims.UserID != "u9" {
		t.Fatalf("claims = %+v err = %v", claims, err)
	}
}
