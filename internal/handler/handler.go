// Package handler exposes the tracker actions over HTTP for the mini-app.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/apperror"
	"github.com/filagate03/FIT-AAAAAI/internal/media"
	"github.com/filagate03/FIT-AAAAAI/internal/model"
	"github.com/filagate03/FIT-AAAAAI/internal/realtime"
	"github.com/filagate03/FIT-AAAAAI/internal/telegram"
	"github.com/filagate03/FIT-AAAAAI/internal/tracker"
)

// Support forwards user messages to the support chat.
type Support interface {
	SendSupportMessage(ctx context.Context, text, userName string, userID int64) error
}

// Handler wires HTTP routes to the tracker.
type Handler struct {
	log      *zap.Logger
	tracker  *tracker.Tracker
	hub      *realtime.Hub
	support  Support
	uploader media.Uploader
	validate *validator.Validate
	botToken string
	upgrader websocket.Upgrader
}

type Options struct {
	Logger   *zap.Logger
	Tracker  *tracker.Tracker
	Hub      *realtime.Hub
	Support  Support
	Uploader media.Uploader
	Validate *validator.Validate
	BotToken string
}

// New creates a new Handler instance.
func New(opts Options) *Handler {
	v := opts.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{
		log:      opts.Logger,
		tracker:  opts.Tracker,
		hub:      opts.Hub,
		support:  opts.Support,
		uploader: opts.Uploader,
		validate: v,
		botToken: opts.BotToken,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Healthz is a simple health check endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Authenticate validates the signed init data header and attaches the user.
// With no bot token configured the check is skipped for local development.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.botToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		initData := r.Header.Get("X-Telegram-Init-Data")
		if initData == "" {
			h.writeError(w, http.StatusUnauthorized, "init data is required")
			return
		}
		if err := telegram.ValidateInitData(initData, h.botToken, time.Now()); err != nil {
			h.log.Warn("init data rejected", zap.Error(err))
			h.writeError(w, http.StatusUnauthorized, "init data is invalid")
			return
		}
		if user, err := telegram.ParseUser(initData); err == nil {
			h.tracker.SetUser(user)
		}
		next.ServeHTTP(w, r)
	})
}

// State returns the full application state snapshot.
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tracker.State())
}

// ResetUsage forces the usage counters through a boundary check.
func (h *Handler) ResetUsage(w http.ResponseWriter, _ *http.Request) {
	h.tracker.CheckAndResetUsage()
	h.writeJSON(w, http.StatusOK, h.tracker.State().Subscription)
}

// ScanRequest carries the image to analyze.
type ScanRequest struct {
	Image string `json:"image" validate:"required"`
}

// Scan analyzes a food photo and stages the result.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.tracker.RequestImageAnalysis(r.Context(), req.Image)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ConfirmScan commits the staged analysis into the diary.
func (h *Handler) ConfirmScan(w http.ResponseWriter, _ *http.Request) {
	entry, err := h.tracker.ConfirmAnalysis()
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// DiscardScan drops the staged analysis.
func (h *Handler) DiscardScan(w http.ResponseWriter, _ *http.Request) {
	h.tracker.DiscardAnalysis()
	w.WriteHeader(http.StatusNoContent)
}

// AddEntry records a manual diary entry.
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var input model.EntryInput
	if !h.decode(w, r, &input) {
		return
	}
	entry, err := h.tracker.AddManualEntry(input)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// AddWater records the one-tap water preset.
func (h *Handler) AddWater(w http.ResponseWriter, _ *http.Request) {
	entry, err := h.tracker.AddWaterEntry()
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// UpdateProfile replaces the profile. A data-URI avatar is uploaded to
// object storage first and replaced by its public URL.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.Profile
	if !h.decode(w, r, &profile) {
		return
	}
	if h.uploader != nil && len(profile.Avatar) > 5 && profile.Avatar[:5] == "data:" {
		url, err := h.uploader.UploadDataURI(r.Context(), profile.Avatar, "avatar")
		if err != nil {
			h.log.Warn("avatar upload failed, keeping previous avatar", zap.Error(err))
			profile.Avatar = h.tracker.State().Profile.Avatar
		} else {
			profile.Avatar = url
		}
	}
	if err := h.tracker.UpdateProfile(r.Context(), profile); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.State().Profile)
}

// CoachMessageRequest is one outgoing chat message.
type CoachMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// SendCoachMessage appends the user message and schedules the reply.
func (h *Handler) SendCoachMessage(w http.ResponseWriter, r *http.Request) {
	var req CoachMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.tracker.SendCoachMessage(r.Context(), req.Text); err != nil {
		h.writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "Ok"})
}

// SupportRequest is a message for the support chat.
type SupportRequest struct {
	Text string `json:"text" validate:"required"`
	Name string `json:"name"`
}

// ContactSupport forwards a message to the support chat through the bot.
func (h *Handler) ContactSupport(w http.ResponseWriter, r *http.Request) {
	var req SupportRequest
	if !h.decode(w, r, &req) {
		return
	}
	if h.support == nil {
		h.writeError(w, http.StatusServiceUnavailable, "support chat is not configured")
		return
	}
	user := h.tracker.User()
	if req.Name == "" {
		if user.ID != 0 {
			req.Name = user.DisplayName()
		} else {
			req.Name = h.tracker.State().Settings.SupportName
		}
	}
	if err := h.support.SendSupportMessage(r.Context(), req.Text, req.Name, user.ID); err != nil {
		h.log.Error("failed to forward support message", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "failed to deliver message")
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "Ok"})
}

// CreatePaymentRequest starts a subscription purchase.
type CreatePaymentRequest struct {
	Tier   model.Tier               `json:"tier" validate:"required,oneof=pro premium"`
	Period model.SubscriptionPeriod `json:"period" validate:"required,oneof=month year"`
}

// CreatePayment opens a provider session for the selected plan.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.tracker.StartSubscriptionPayment(r.Context(), req.Tier, req.Period)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// RefreshPayment polls the provider and reconciles the pending payment.
func (h *Handler) RefreshPayment(w http.ResponseWriter, r *http.Request) {
	status, err := h.tracker.RefreshPaymentStatus(r.Context())
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// CancelSubscription stops renewals for the active plan.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.CancelCurrentSubscription(r.Context()); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.State().Subscription)
}

// ToggleNotifications flips the premium reminder setting.
func (h *Handler) ToggleNotifications(w http.ResponseWriter, _ *http.Request) {
	if err := h.tracker.ToggleNotifications(); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.State().Settings)
}

// AcceptTerms records acceptance of the current terms version.
func (h *Handler) AcceptTerms(w http.ResponseWriter, _ *http.Request) {
	h.tracker.AcceptTerms()
	h.writeJSON(w, http.StatusOK, h.tracker.State().Settings)
}

// Events upgrades to a websocket and streams UI events until the peer leaves.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &realtime.Client{Conn: conn}
	h.hub.Register(client)
	go func() {
		defer h.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Error("failed to decode json", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.log.Warn("validation failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(apperror.CustomValidationError(err))
		return false
	}
	return true
}

// writeActionError maps tracker sentinels onto HTTP statuses.
func (h *Handler) writeActionError(w http.ResponseWriter, err error) {
	var validationErr validator.ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(apperror.CustomValidationError(err))
	case errors.Is(err, tracker.ErrScanLimitReached), errors.Is(err, tracker.ErrEntryLimitReached):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, tracker.ErrPremiumRequired):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, tracker.ErrNoPendingAnalysis),
		errors.Is(err, tracker.ErrNoPendingPayment),
		errors.Is(err, tracker.ErrPaymentPending),
		errors.Is(err, tracker.ErrNoSubscription):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("action failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "upstream request failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("unable to write response stream", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
