package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
	"github.com/heraldapp/herald/internal/dispatch"
	"github.com/heraldapp/herald/internal/preference"
)

// Dispatcher is the send surface the handlers drive.
type Dispatcher interface {
	SendEmail(ctx context.Context, req dispatch.EmailRequest) dispatch.Result
	SendSms(ctx context.Context, req dispatch.SmsRequest) dispatch.Result
	SendTemplatedEmail(ctx context.Context, req dispatch.TemplatedEmailRequest) dispatch.Result
	SendTemplatedSms(ctx context.Context, req dispatch.TemplatedSmsRequest) dispatch.Result
	SendBulk(ctx context.Context, req dispatch.BulkRequest) dispatch.Result
	SendRealTime(userID uuid.UUID, msgType, message string) dispatch.Result
}

// Broadcaster fans realtime messages out to every live connection.
type Broadcaster interface {
	Broadcast(msgType, message string) int
	ConnectedCount() int
}

// PreferenceService manages per-user channel preferences.
type PreferenceService interface {
	GetUserPreferences(ctx context.Context, userID uuid.UUID) ([]*db.UserNotificationPreference, error)
	UpdatePreference(ctx context.Context, userID uuid.UUID, update preference.Update) (*db.UserNotificationPreference, error)
}

// LogRepository is the read surface for audit logs and stats.
type LogRepository interface {
	ListLogsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.NotificationLog, error)
	GetStats(ctx context.Context, start, end time.Time) (*db.DeliveryStats, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger      *zap.Logger
	dispatcher  Dispatcher
	broadcaster Broadcaster
	preferences PreferenceService
	logs        LogRepository
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, dispatcher Dispatcher, broadcaster Broadcaster, preferences PreferenceService, logs LogRepository) *Handler {
	return &Handler{
		logger:      logger,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		preferences: preferences,
		logs:        logs,
	}
}

// SendEmail handles POST /v1/notifications/email
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req dispatch.EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.To == "" || req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "to and subject are required")
		return
	}

	result := h.dispatcher.SendEmail(r.Context(), req)
	h.writeResult(w, result)
}

// SendSms handles POST /v1/notifications/sms
func (h *Handler) SendSms(w http.ResponseWriter, r *http.Request) {
	var req dispatch.SmsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.PhoneNumber == "" || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "phone_number and message are required")
		return
	}

	result := h.dispatcher.SendSms(r.Context(), req)
	h.writeResult(w, result)
}

// SendTemplatedEmail handles POST /v1/notifications/email/templated
func (h *Handler) SendTemplatedEmail(w http.ResponseWriter, r *http.Request) {
	var req dispatch.TemplatedEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.To == "" || req.TemplateName == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "to and template_name are required")
		return
	}

	result := h.dispatcher.SendTemplatedEmail(r.Context(), req)
	h.writeResult(w, result)
}

// SendTemplatedSms handles POST /v1/notifications/sms/templated
func (h *Handler) SendTemplatedSms(w http.ResponseWriter, r *http.Request) {
	var req dispatch.TemplatedSmsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.PhoneNumber == "" || req.TemplateName == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "phone_number and template_name are required")
		return
	}

	result := h.dispatcher.SendTemplatedSms(r.Context(), req)
	h.writeResult(w, result)
}

// SendBulk handles POST /v1/notifications/bulk
func (h *Handler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req dispatch.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if len(req.Recipients) == 0 || req.TemplateName == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "recipients and template_name are required")
		return
	}
	if req.NotificationType != db.TypeEmail && req.NotificationType != db.TypeSMS {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification_type", "notification_type must be EMAIL or SMS")
		return
	}
	if req.RequestedBy == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing requested_by", "requested_by must be a valid UUID")
		return
	}

	result := h.dispatcher.SendBulk(r.Context(), req)
	if !result.Success {
		h.writeError(w, http.StatusInternalServerError, "queue_error", "Failed to queue bulk notification", result.Message)
		return
	}

	h.logger.Info("bulk notification accepted",
		zap.Int("recipients", len(req.Recipients)),
		zap.String("template", req.TemplateName),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(result)
}

// RealtimeRequest is the body for a realtime push or broadcast.
type RealtimeRequest struct {
	UserID  string `json:"user_id,omitempty"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendRealtime handles POST /v1/notifications/realtime
func (h *Handler) SendRealtime(w http.ResponseWriter, r *http.Request) {
	var req RealtimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.UserID == "" || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "user_id and message are required")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}
	if req.Type == "" {
		req.Type = "notification"
	}

	result := h.dispatcher.SendRealTime(userID, req.Type, req.Message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// Broadcast handles POST /v1/notifications/realtime/broadcast
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req RealtimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing message", "message is required")
		return
	}
	if req.Type == "" {
		req.Type = "broadcast"
	}

	delivered := h.broadcaster.Broadcast(req.Type, req.Message)

	h.logger.Info("broadcast sent",
		zap.Int("delivered", delivered),
		zap.Int("connected", h.broadcaster.ConnectedCount()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}

// GetPreferences handles GET /v1/preferences/{userID}
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user ID", "user ID must be a valid UUID")
		return
	}

	prefs, err := h.preferences.GetUserPreferences(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get preferences",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get preferences", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": prefs})
}

// UpdatePreferenceRequest is the body for PUT /v1/preferences/{userID}.
// Omitted fields keep their current value.
type UpdatePreferenceRequest struct {
	Category     string  `json:"category"`
	EmailEnabled *bool   `json:"email_enabled,omitempty"`
	SmsEnabled   *bool   `json:"sms_enabled,omitempty"`
	PushEnabled  *bool   `json:"push_enabled,omitempty"`
	InAppEnabled *bool   `json:"in_app_enabled,omitempty"`
	Frequency    *string `json:"frequency,omitempty"`
}

// UpdatePreference handles PUT /v1/preferences/{userID}
func (h *Handler) UpdatePreference(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user ID", "user ID must be a valid UUID")
		return
	}

	var req UpdatePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if !validCategory(req.Category) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid category",
			"category must be one of: SECURITY, ACCOUNT, SYSTEM, MARKETING")
		return
	}
	if req.Frequency != nil && !validFrequency(*req.Frequency) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid frequency",
			"frequency must be one of: IMMEDIATE, DAILY, WEEKLY, DISABLED")
		return
	}

	pref, err := h.preferences.UpdatePreference(r.Context(), userID, preference.Update{
		Category:     req.Category,
		EmailEnabled: req.EmailEnabled,
		SmsEnabled:   req.SmsEnabled,
		PushEnabled:  req.PushEnabled,
		InAppEnabled: req.InAppEnabled,
		Frequency:    req.Frequency,
	})
	if err != nil {
		h.logger.Error("failed to update preference",
			zap.String("user_id", userID.String()),
			zap.String("category", req.Category),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update preference", "")
		return
	}

	h.logger.Info("preference updated",
		zap.String("user_id", userID.String()),
		zap.String("category", req.Category),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(pref)
}

// ListNotifications handles GET /v1/notifications?user_id=xxx&limit=20&offset=0
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing user_id", "user_id query parameter is required")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}

	limit := 20
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	logs, err := h.logs.ListLogsByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications",
			zap.String("user_id", userIDStr),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notifications", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data":   logs,
		"limit":  limit,
		"offset": offset,
		"count":  len(logs),
	})
}

// GetStats handles GET /v1/stats?days=30
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 && d <= 365 {
			days = d
		}
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	stats, err := h.logs.GetStats(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to get stats", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get stats", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}

// writeResult maps a dispatch result onto HTTP: suppressed sends are
// 200 with disabled=true, provider failures are 502 with the audit log
// id, successes are 200.
func (h *Handler) writeResult(w http.ResponseWriter, result dispatch.Result) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case result.Disabled:
		w.WriteHeader(http.StatusOK)
	case !result.Success:
		w.WriteHeader(http.StatusBadGateway)
	default:
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(result)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func validCategory(category string) bool {
	for _, c := range db.Categories {
		if category == c {
			return true
		}
	}
	return false
}

func validFrequency(freq string) bool {
	switch freq {
	case db.FrequencyImmediate, db.FrequencyDaily, db.FrequencyWeekly, db.FrequencyDisabled:
		return true
	}
	return false
}
