package preference

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
)

type fakePrefRepo struct {
	prefs map[string]*db.UserNotificationPreference // key: user/category
	err   error
}

func newFakePrefRepo() *fakePrefRepo {
	return &fakePrefRepo{prefs: make(map[string]*db.UserNotificationPreference)}
}

func prefKey(userID uuid.UUID, category string) string {
	return userID.String() + "/" + category
}

func (r *fakePrefRepo) GetPreference(ctx context.Context, userID uuid.UUID, category string) (*db.UserNotificationPreference, error) {
	if r.err != nil {
		return nil, r.err
	}
	pref, ok := r.prefs[prefKey(userID, category)]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *pref
	return &cp, nil
}

func (r *fakePrefRepo) ListPreferences(ctx context.Context, userID uuid.UUID) ([]*db.UserNotificationPreference, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*db.UserNotificationPreference
	for _, pref := range r.prefs {
		if pref.UserID == userID {
			cp := *pref
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePrefRepo) UpsertPreference(ctx context.Context, pref *db.UserNotificationPreference) error {
	if r.err != nil {
		return r.err
	}
	cp := *pref
	r.prefs[prefKey(pref.UserID, pref.Category)] = &cp
	return nil
}

func TestIsEnabled_NilUserAlwaysEnabled(t *testing.T) {
	svc := NewService(newFakePrefRepo(), zap.NewNop())

	if !svc.IsEnabled(context.Background(), nil, db.CategoryMarketing, ChannelEmail) {
		t.Error("nil user must always be enabled")
	}
}

func TestIsEnabled_LookupErrorFailsOpen(t *testing.T) {
	repo := newFakePrefRepo()
	repo.err = errors.New("connection refused")
	svc := NewService(repo, zap.NewNop())
	userID := uuid.New()

	if !svc.IsEnabled(context.Background(), &userID, db.CategoryAccount, ChannelEmail) {
		t.Error("lookup error must fail open")
	}
}

func TestIsEnabled_MissingRowUsesCategoryDefaults(t *testing.T) {
	svc := NewService(newFakePrefRepo(), zap.NewNop())
	userID := uuid.New()
	ctx := context.Background()

	cases := []struct {
		category string
		channel  Channel
		want     bool
	}{
		{db.CategorySecurity, ChannelEmail, true},
		{db.CategorySecurity, ChannelSMS, true},
		{db.CategoryAccount, ChannelEmail, true},
		{db.CategoryAccount, ChannelSMS, false},
		{db.CategorySystem, ChannelPush, true},
		{db.CategorySystem, ChannelSMS, false},
		{db.CategoryMarketing, ChannelEmail, false},
		{db.CategoryMarketing, ChannelSMS, false},
		{db.CategoryMarketing, ChannelInApp, false},
	}

	for _, tc := range cases {
		got := svc.IsEnabled(ctx, &userID, tc.category, tc.channel)
		if got != tc.want {
			t.Errorf("%s/%s: got %v, want %v", tc.category, tc.channel, got, tc.want)
		}
	}
}

func TestIsEnabled_StoredRowWins(t *testing.T) {
	repo := newFakePrefRepo()
	userID := uuid.New()
	pref := db.DefaultPreference(userID, db.CategoryAccount)
	pref.EmailEnabled = false
	_ = repo.UpsertPreference(context.Background(), pref)

	svc := NewService(repo, zap.NewNop())

	if svc.IsEnabled(context.Background(), &userID, db.CategoryAccount, ChannelEmail) {
		t.Error("explicit opt-out must suppress")
	}
}

func TestGetUserPreferences_LazilyCreatesDefaults(t *testing.T) {
	repo := newFakePrefRepo()
	svc := NewService(repo, zap.NewNop())
	userID := uuid.New()

	prefs, err := svc.GetUserPreferences(context.Background(), userID)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if len(prefs) != len(db.Categories) {
		t.Fatalf("expected %d rows, got %d", len(db.Categories), len(prefs))
	}
	if len(repo.prefs) != len(db.Categories) {
		t.Errorf("defaults must be persisted, stored %d", len(repo.prefs))
	}

	// Second call returns the stored rows without re-creating.
	again, err := svc.GetUserPreferences(context.Background(), userID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if len(again) != len(db.Categories) {
		t.Errorf("expected %d rows on second call, got %d", len(db.Categories), len(again))
	}
}

func TestUpdatePreference_PartialUpdate(t *testing.T) {
	repo := newFakePrefRepo()
	svc := NewService(repo, zap.NewNop())
	userID := uuid.New()

	enabled := true
	pref, err := svc.UpdatePreference(context.Background(), userID, Update{
		Category:   db.CategoryAccount,
		SmsEnabled: &enabled,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if !pref.SmsEnabled {
		t.Error("sms should be enabled after update")
	}
	// Untouched fields keep the ACCOUNT defaults.
	if !pref.EmailEnabled || !pref.PushEnabled {
		t.Errorf("untouched channels must keep defaults: %+v", pref)
	}
	if pref.Frequency != db.FrequencyImmediate {
		t.Errorf("frequency should remain default, got %q", pref.Frequency)
	}
}

func TestUpdatePreference_CreatesRowOnFirstTouch(t *testing.T) {
	repo := newFakePrefRepo()
	svc := NewService(repo, zap.NewNop())
	userID := uuid.New()

	disabled := false
	_, err := svc.UpdatePreference(context.Background(), userID, Update{
		Category:     db.CategorySecurity,
		EmailEnabled: &disabled,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, ok := repo.prefs[prefKey(userID, db.CategorySecurity)]
	if !ok {
		t.Fatal("row must be created on first update")
	}
	if stored.EmailEnabled {
		t.Error("stored row must carry the update")
	}
	if !stored.SmsEnabled {
		t.Error("SECURITY default keeps sms on")
	}
}
