package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
	"github.com/heraldapp/herald/internal/dispatch"
	"github.com/heraldapp/herald/internal/preference"
)

type fakeDispatcher struct {
	emails    []dispatch.EmailRequest
	sms       []dispatch.SmsRequest
	templated []dispatch.TemplatedEmailRequest
	bulks     []dispatch.BulkRequest
	realtime  int
	result    dispatch.Result
}

func (f *fakeDispatcher) SendEmail(_ context.Context, req dispatch.EmailRequest) dispatch.Result {
	f.emails = append(f.emails, req)
	return f.result
}

func (f *fakeDispatcher) SendSms(_ context.Context, req dispatch.SmsRequest) dispatch.Result {
	f.sms = append(f.sms, req)
	return f.result
}

func (f *fakeDispatcher) SendTemplatedEmail(_ context.Context, req dispatch.TemplatedEmailRequest) dispatch.Result {
	f.templated = append(f.templated, req)
	return f.result
}

func (f *fakeDispatcher) SendTemplatedSms(_ context.Context, _ dispatch.TemplatedSmsRequest) dispatch.Result {
	return f.result
}

func (f *fakeDispatcher) SendBulk(_ context.Context, req dispatch.BulkRequest) dispatch.Result {
	f.bulks = append(f.bulks, req)
	return f.result
}

func (f *fakeDispatcher) SendRealTime(_ uuid.UUID, _, _ string) dispatch.Result {
	f.realtime++
	return f.result
}

type fakeBroadcaster struct {
	delivered int
	connected int
}

func (f *fakeBroadcaster) Broadcast(_, _ string) int { return f.delivered }
func (f *fakeBroadcaster) ConnectedCount() int       { return f.connected }

type fakePreferences struct {
	prefs   []*db.UserNotificationPreference
	updated []preference.Update
	err     error
}

func (f *fakePreferences) GetUserPreferences(_ context.Context, _ uuid.UUID) ([]*db.UserNotificationPreference, error) {
	return f.prefs, f.err
}

func (f *fakePreferences) UpdatePreference(_ context.Context, userID uuid.UUID, update preference.Update) (*db.UserNotificationPreference, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = append(f.updated, update)
	pref := db.DefaultPreference(userID, update.Category)
	return pref, nil
}

type fakeLogs struct {
	logs  []*db.NotificationLog
	stats *db.DeliveryStats
	err   error
}

func (f *fakeLogs) ListLogsByUser(_ context.Context, _ uuid.UUID, _, _ int) ([]*db.NotificationLog, error) {
	return f.logs, f.err
}

func (f *fakeLogs) GetStats(_ context.Context, start, end time.Time) (*db.DeliveryStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.stats.PeriodStart = start
	f.stats.PeriodEnd = end
	return f.stats, nil
}

type testHandler struct {
	handler     *Handler
	dispatcher  *fakeDispatcher
	broadcaster *fakeBroadcaster
	preferences *fakePreferences
	logs        *fakeLogs
}

func newTestHandler() *testHandler {
	d := &fakeDispatcher{result: dispatch.Result{Success: true, Provider: "LOG_EMAIL"}}
	b := &fakeBroadcaster{delivered: 2, connected: 3}
	p := &fakePreferences{}
	l := &fakeLogs{stats: &db.DeliveryStats{TotalSent: 10, TotalFailed: 2}}
	return &testHandler{
		handler:     NewHandler(zap.NewNop(), d, b, p, l),
		dispatcher:  d,
		broadcaster: b,
		preferences: p,
		logs:        l,
	}
}

func postJSON(t *testing.T, handlerFn http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handlerFn(rec, req)
	return rec
}

func TestSendEmail_Success(t *testing.T) {
	env := newTestHandler()

	rec := postJSON(t, env.handler.SendEmail, map[string]string{
		"to":        "user@example.com",
		"subject":   "Hello",
		"body_html": "<p>Hi</p>",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(env.dispatcher.emails) != 1 {
		t.Fatalf("dispatched emails: got %d", len(env.dispatcher.emails))
	}
	if env.dispatcher.emails[0].To != "user@example.com" {
		t.Errorf("recipient: got %s", env.dispatcher.emails[0].To)
	}
}

func TestSendEmail_MissingFields(t *testing.T) {
	env := newTestHandler()

	rec := postJSON(t, env.handler.SendEmail, map[string]string{"to": "user@example.com"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(env.dispatcher.emails) != 0 {
		t.Error("dispatcher must not be called on validation failure")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type: got %s", ct)
	}
}

func TestSendEmail_ProviderFailure(t *testing.T) {
	env := newTestHandler()
	env.dispatcher.result = dispatch.Result{Success: false, Message: "smtp down"}

	rec := postJSON(t, env.handler.SendEmail, map[string]string{
		"to":      "user@example.com",
		"subject": "Hello",
	})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestSendEmail_Suppressed(t *testing.T) {
	env := newTestHandler()
	env.dispatcher.result = dispatch.Result{Disabled: true, Message: "Email notifications disabled for user"}

	rec := postJSON(t, env.handler.SendEmail, map[string]string{
		"to":      "user@example.com",
		"subject": "Hello",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("suppressed send must be 200, got %d", rec.Code)
	}

	var result dispatch.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Disabled {
		t.Error("response must carry disabled=true")
	}
}

func TestSendSms_MalformedBody(t *testing.T) {
	env := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.handler.SendSms(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestSendBulk_Accepted(t *testing.T) {
	env := newTestHandler()
	requester := uuid.New()

	rec := postJSON(t, env.handler.SendBulk, map[string]any{
		"recipients":        []string{"a@example.com", "b@example.com"},
		"template_name":     "welcome",
		"notification_type": "EMAIL",
		"requested_by":      requester.String(),
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(env.dispatcher.bulks) != 1 {
		t.Fatalf("bulk calls: got %d", len(env.dispatcher.bulks))
	}
	if env.dispatcher.bulks[0].RequestedBy != requester {
		t.Error("requested_by not carried through")
	}
}

func TestSendBulk_RejectsInvalidType(t *testing.T) {
	env := newTestHandler()

	rec := postJSON(t, env.handler.SendBulk, map[string]any{
		"recipients":        []string{"a@example.com"},
		"template_name":     "welcome",
		"notification_type": "CARRIER_PIGEON",
		"requested_by":      uuid.New().String(),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(env.dispatcher.bulks) != 0 {
		t.Error("dispatcher must not be called")
	}
}

func TestSendBulk_QueueFailure(t *testing.T) {
	env := newTestHandler()
	env.dispatcher.result = dispatch.Result{Message: "failed to queue bulk notification: redis down"}

	rec := postJSON(t, env.handler.SendBulk, map[string]any{
		"recipients":        []string{"a@example.com"},
		"template_name":     "welcome",
		"notification_type": "EMAIL",
		"requested_by":      uuid.New().String(),
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestSendRealtime_DefaultsType(t *testing.T) {
	env := newTestHandler()

	rec := postJSON(t, env.handler.SendRealtime, map[string]string{
		"user_id": uuid.New().String(),
		"message": "hello",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if env.dispatcher.realtime != 1 {
		t.Errorf("realtime pushes: got %d", env.dispatcher.realtime)
	}
}

func TestBroadcast(t *testing.T) {
	env := newTestHandler()

	rec := postJSON(t, env.handler.Broadcast, map[string]string{"message": "maintenance at noon"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["delivered"] != 2 {
		t.Errorf("delivered: got %d", body["delivered"])
	}
}

func chiRequest(t *testing.T, handlerFn http.HandlerFunc, method, target, paramKey, paramVal string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(paramKey, paramVal)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handlerFn(rec, req)
	return rec
}

func TestGetPreferences(t *testing.T) {
	env := newTestHandler()
	userID := uuid.New()
	env.preferences.prefs = []*db.UserNotificationPreference{
		db.DefaultPreference(userID, db.CategorySecurity),
	}

	rec := chiRequest(t, env.handler.GetPreferences, http.MethodGet, "/v1/preferences/"+userID.String(), "userID", userID.String(), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestGetPreferences_BadUserID(t *testing.T) {
	env := newTestHandler()

	rec := chiRequest(t, env.handler.GetPreferences, http.MethodGet, "/v1/preferences/nope", "userID", "nope", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestUpdatePreference(t *testing.T) {
	env := newTestHandler()
	userID := uuid.New()
	body, _ := json.Marshal(map[string]any{
		"category":    "MARKETING",
		"sms_enabled": true,
	})

	rec := chiRequest(t, env.handler.UpdatePreference, http.MethodPut, "/v1/preferences/"+userID.String(), "userID", userID.String(), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(env.preferences.updated) != 1 {
		t.Fatalf("updates: got %d", len(env.preferences.updated))
	}
	update := env.preferences.updated[0]
	if update.Category != db.CategoryMarketing {
		t.Errorf("category: got %s", update.Category)
	}
	if update.SmsEnabled == nil || !*update.SmsEnabled {
		t.Error("sms_enabled not carried through")
	}
	if update.EmailEnabled != nil {
		t.Error("omitted fields must stay nil")
	}
}

func TestUpdatePreference_RejectsUnknownCategory(t *testing.T) {
	env := newTestHandler()
	userID := uuid.New()
	body, _ := json.Marshal(map[string]string{"category": "GOSSIP"})

	rec := chiRequest(t, env.handler.UpdatePreference, http.MethodPut, "/v1/preferences/"+userID.String(), "userID", userID.String(), body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestListNotifications(t *testing.T) {
	env := newTestHandler()
	env.logs.logs = []*db.NotificationLog{
		{LogID: uuid.New(), NotificationType: db.TypeEmail, Status: db.StatusSent},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications?user_id="+uuid.New().String()+"&limit=5", nil)
	rec := httptest.NewRecorder()
	env.handler.ListNotifications(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || body.Limit != 5 {
		t.Errorf("envelope: got count=%d limit=%d", body.Count, body.Limit)
	}
}

func TestListNotifications_RequiresUserID(t *testing.T) {
	env := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	rec := httptest.NewRecorder()
	env.handler.ListNotifications(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestGetStats_WindowFromDays(t *testing.T) {
	env := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/stats?days=7", nil)
	rec := httptest.NewRecorder()
	env.handler.GetStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	window := env.logs.stats.PeriodEnd.Sub(env.logs.stats.PeriodStart)
	if window < 6*24*time.Hour || window > 8*24*time.Hour {
		t.Errorf("stats window: got %s", window)
	}
}

func TestGetStats_DatabaseError(t *testing.T) {
	env := newTestHandler()
	env.logs.err = errors.New("connection refused")

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	env.handler.GetStats(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
}
