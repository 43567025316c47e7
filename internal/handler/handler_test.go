package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
	"github.com/filagate03/FIT-AAAAAI/internal/payments"
	"github.com/filagate03/FIT-AAAAAI/internal/realtime"
	"github.com/filagate03/FIT-AAAAAI/internal/state"
	"github.com/filagate03/FIT-AAAAAI/internal/storage"
	"github.com/filagate03/FIT-AAAAAI/internal/tracker"
)

type stubAnalyzer struct {
	analysis   model.AnalysisResult
	analyzeErr error
}

func (s *stubAnalyzer) AnalyzeFood(context.Context, string, model.Profile) (model.AnalysisResult, error) {
	return s.analysis, s.analyzeErr
}

func (s *stubAnalyzer) CoachReply(context.Context, []model.ChatMessage, model.Profile, []model.DiaryEntry, model.Tier) (string, error) {
	return "Совет от коуча", nil
}

type stubGateway struct {
	session payments.Session
	status  model.PaymentStatus
}

func (s *stubGateway) Create(context.Context, model.Tier, model.SubscriptionPeriod, string, payments.Metadata) (payments.Session, error) {
	return s.session, nil
}

func (s *stubGateway) Status(context.Context, string) (model.PaymentStatus, error) {
	return s.status, nil
}

func (s *stubGateway) CancelSubscription(context.Context, string) error { return nil }

type stubSupport struct {
	texts []string
	names []string
}

func (s *stubSupport) SendSupportMessage(_ context.Context, text, name string, _ int64) error {
	s.texts = append(s.texts, text)
	s.names = append(s.names, name)
	return nil
}

type env struct {
	handler *Handler
	router  *chi.Mux
	tracker *tracker.Tracker
	store   *state.Store
	ai      *stubAnalyzer
	gateway *stubGateway
	support *stubSupport
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := storage.NewJSONStorage(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	store := state.New(st, log, nil, nil)

	e := &env{
		store:   store,
		ai:      &stubAnalyzer{},
		gateway: &stubGateway{},
		support: &stubSupport{},
	}
	e.tracker = tracker.New(tracker.Options{
		Store:   store,
		AI:      e.ai,
		Gateway: e.gateway,
		Logger:  log,
	})
	e.handler = New(Options{
		Logger:  log,
		Tracker: e.tracker,
		Hub:     realtime.NewHub(log),
		Support: e.support,
	})

	r := chi.NewRouter()
	r.Get("/healthz", e.handler.Healthz)
	r.Get("/api/state", e.handler.State)
	r.Post("/api/usage/reset", e.handler.ResetUsage)
	r.Post("/api/scan", e.handler.Scan)
	r.Post("/api/scan/confirm", e.handler.ConfirmScan)
	r.Delete("/api/scan", e.handler.DiscardScan)
	r.Post("/api/diary/entries", e.handler.AddEntry)
	r.Post("/api/diary/water", e.handler.AddWater)
	r.Put("/api/profile", e.handler.UpdateProfile)
	r.Post("/api/coach/messages", e.handler.SendCoachMessage)
	r.Post("/api/support", e.handler.ContactSupport)
	r.Post("/api/payments", e.handler.CreatePayment)
	r.Post("/api/payments/refresh", e.handler.RefreshPayment)
	r.Delete("/api/subscription", e.handler.CancelSubscription)
	r.Post("/api/settings/notifications", e.handler.ToggleNotifications)
	r.Post("/api/terms/accept", e.handler.AcceptTerms)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStateReturnsSnapshot(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot model.AppState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, model.TierFree, snapshot.Subscription.Tier)
	assert.Equal(t, "Пользователь", snapshot.Profile.Name)
}

func TestScanFlow(t *testing.T) {
	e := newEnv(t)
	e.ai.analysis = model.AnalysisResult{Food: "Плов", PortionGrams: 250, Calories: 450}

	rec := e.do(t, http.MethodPost, "/api/scan", map[string]string{"image": "aW1n"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Плов", result.Food)

	rec = e.do(t, http.MethodPost, "/api/scan/confirm", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry model.DiaryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "Плов", entry.Food)
	assert.NotEmpty(t, entry.ID)
}

func TestScanRequiresImage(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/scan", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "required")
}

func TestScanLimitMapsTo429(t *testing.T) {
	e := newEnv(t)
	e.ai.analysis = model.AnalysisResult{Food: "Суп"}
	for i := 0; i < tracker.FreeScansPerDay; i++ {
		rec := e.do(t, http.MethodPost, "/api/scan", map[string]string{"image": "aW1n"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := e.do(t, http.MethodPost, "/api/scan", map[string]string{"image": "aW1n"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestConfirmWithoutScanConflicts(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/scan/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddEntryValidation(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/diary/entries", map[string]any{"calories": 100})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "required")
}

func TestAddEntryAndWater(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/diary/entries", map[string]any{
		"food": "Овсянка", "portion_grams": 150, "calories": 180, "protein": 6, "fat": 3, "carbs": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/diary/water", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	entries := e.store.Get().Diary.Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "Вода", entries[0].Food)
	assert.Equal(t, "Овсянка", entries[1].Food)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPut, "/api/profile", map[string]any{
		"name": "Анна", "age": 28, "weightKg": 60, "heightCm": 165,
		"gender": "female", "activityLevel": "light", "goalWeightKg": 55,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var profile model.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "Анна", profile.Name)
	assert.Greater(t, profile.DailyIntake.Calories, float64(0))
}

func TestUpdateProfileValidation(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPut, "/api/profile", map[string]any{"name": "Анна", "gender": "robot"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendCoachMessage(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/coach/messages", map[string]string{"text": "Что на ужин?"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		history := e.store.Get().CoachHistory
		return history[len(history)-1].Text == "Совет от коуча"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestContactSupport(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/support", map[string]string{"text": "Помогите"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, e.support.texts, 1)
	assert.Equal(t, "Помогите", e.support.texts[0])
	assert.NotEmpty(t, e.support.names[0])
}

func TestPaymentFlow(t *testing.T) {
	e := newEnv(t)
	e.gateway.session = payments.Session{PaymentID: "pay-1", ConfirmationURL: "https://pay.example/1"}

	rec := e.do(t, http.MethodPost, "/api/payments", map[string]string{"tier": "pro", "period": "month"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var session payments.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "https://pay.example/1", session.ConfirmationURL)

	e.gateway.status = model.PaymentSucceeded
	rec = e.do(t, http.MethodPost, "/api/payments/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TierPro, e.store.Get().Subscription.Tier)

	rec = e.do(t, http.MethodDelete, "/api/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.SubscriptionCancelled, e.store.Get().Subscription.Status)
}

func TestCreatePaymentValidation(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/payments", map[string]string{"tier": "free", "period": "month"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshWithoutPendingConflicts(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/payments/refresh", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestToggleNotificationsForbiddenForFree(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/settings/notifications", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptTerms(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/terms/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TermsVersion, e.store.Get().Settings.TermsAcceptedVersion)
}

func TestAuthenticateSkippedWithoutToken(t *testing.T) {
	e := newEnv(t)
	protected := e.handler.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejectsBadInitData(t *testing.T) {
	e := newEnv(t)
	e.handler.botToken = "123:token"
	protected := e.handler.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("X-Telegram-Init-Data", "hash=deadbeef&auth_date=1")
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("{not-json"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request payload")
}
