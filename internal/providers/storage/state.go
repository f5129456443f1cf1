package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Persistent keys
const (
	KeySessionCookies       = "session_cookies"
	KeyPersistentURL        = "persistent_url"
	KeyURLExpires           = "url_expires"
	KeyURLFetchedAt         = "url_fetched_at"
	KeyAppMode              = "app_mode"
	KeyHasLaunched          = "has_launched"
	KeyNotificationsAllowed = "notifications_allowed"
	KeyNotificationsDenied  = "notifications_denied"
	KeyLastPromptDate       = "last_prompt_date"
	KeyTempURL              = "temp_url"
	KeyPushToken            = "push_token"
	KeyDeviceID             = "device_id"
)

// PermissionDecision is the recorded answer to the notification permission prompt
type PermissionDecision int

const (
	PermissionUndecided PermissionDecision = iota
	PermissionGranted
	PermissionDenied
)

// State is the typed view over a Store used by the gate
type State struct {
	store Store

	// serializes read-modify-write accessors such as TakeTempURL
	mu sync.Mutex
}

// NewState wraps store
func NewState(store Store) *State {
	return &State{store: store}
}

// Store returns the underlying store
func (s *State) Store() Store {
	return s.store
}

func (s *State) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *State) set(ctx context.Context, key string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.store.Set(ctx, key, data)
}

// RemoteConfig returns the persisted config, or nil when none was stored
func (s *State) RemoteConfig(ctx context.Context) (*types.RemoteConfig, error) {
	var u string
	ok, err := s.get(ctx, KeyPersistentURL, &u)
	if err != nil || !ok || u == "" {
		return nil, err
	}

	cfg := &types.RemoteConfig{URL: u}
	var expires, fetched int64
	if ok, err := s.get(ctx, KeyURLExpires, &expires); err == nil && ok && expires > 0 {
		cfg.ExpiresAt = time.Unix(expires, 0).UTC()
	}
	if ok, err := s.get(ctx, KeyURLFetchedAt, &fetched); err == nil && ok && fetched > 0 {
		cfg.FetchedAt = time.Unix(fetched, 0).UTC()
	}
	return cfg, nil
}

// SaveRemoteConfig persists cfg
func (s *State) SaveRemoteConfig(ctx context.Context, cfg types.RemoteConfig) error {
	if err := s.set(ctx, KeyPersistentURL, cfg.URL); err != nil {
		return err
	}
	var expires, fetched int64
	if !cfg.ExpiresAt.IsZero() {
		expires = cfg.ExpiresAt.Unix()
	}
	if !cfg.FetchedAt.IsZero() {
		fetched = cfg.FetchedAt.Unix()
	}
	if err := s.set(ctx, KeyURLExpires, expires); err != nil {
		return err
	}
	return s.set(ctx, KeyURLFetchedAt, fetched)
}

// AppMode returns the persisted display mode
func (s *State) AppMode(ctx context.Context) (types.AppMode, error) {
	var mode string
	if _, err := s.get(ctx, KeyAppMode, &mode); err != nil {
		return types.ModeUnset, err
	}
	return types.AppMode(mode), nil
}

// SetAppMode persists the display mode
func (s *State) SetAppMode(ctx context.Context, mode types.AppMode) error {
	return s.set(ctx, KeyAppMode, string(mode))
}

// HasLaunched reports whether a previous launch completed attribution handling
func (s *State) HasLaunched(ctx context.Context) (bool, error) {
	var v bool
	_, err := s.get(ctx, KeyHasLaunched, &v)
	return v, err
}

// MarkLaunched records that attribution handling ran at least once
func (s *State) MarkLaunched(ctx context.Context) error {
	return s.set(ctx, KeyHasLaunched, true)
}

// PermissionDecision returns the recorded notification permission answer
func (s *State) PermissionDecision(ctx context.Context) (PermissionDecision, error) {
	var allowed, denied bool
	if _, err := s.get(ctx, KeyNotificationsAllowed, &allowed); err != nil {
		return PermissionUndecided, err
	}
	if _, err := s.get(ctx, KeyNotificationsDenied, &denied); err != nil {
		return PermissionUndecided, err
	}
	switch {
	case allowed:
		return PermissionGranted, nil
	case denied:
		return PermissionDenied, nil
	default:
		return PermissionUndecided, nil
	}
}

// SetPermissionDecision records a granted or denied answer
func (s *State) SetPermissionDecision(ctx context.Context, d PermissionDecision) error {
	if err := s.set(ctx, KeyNotificationsAllowed, d == PermissionGranted); err != nil {
		return err
	}
	return s.set(ctx, KeyNotificationsDenied, d == PermissionDenied)
}

// LastPromptDate returns when the permission prompt was last shown, zero if never
func (s *State) LastPromptDate(ctx context.Context) (time.Time, error) {
	var unix int64
	ok, err := s.get(ctx, KeyLastPromptDate, &unix)
	if err != nil || !ok || unix == 0 {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}

// SetLastPromptDate records when the permission prompt was shown
func (s *State) SetLastPromptDate(ctx context.Context, t time.Time) error {
	return s.set(ctx, KeyLastPromptDate, t.Unix())
}

// TempURL returns the pending deep link without clearing it
func (s *State) TempURL(ctx context.Context) (string, error) {
	var u string
	_, err := s.get(ctx, KeyTempURL, &u)
	return u, err
}

// SetTempURL stores a deep link to open as soon as possible
func (s *State) SetTempURL(ctx context.Context, u string) error {
	return s.set(ctx, KeyTempURL, u)
}

// TakeTempURL returns and clears the pending deep link
func (s *State) TakeTempURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.TempURL(ctx)
	if err != nil || u == "" {
		return "", err
	}
	if err := s.store.Delete(ctx, KeyTempURL); err != nil {
		return "", err
	}
	return u, nil
}

// PushToken returns the last registered push token
func (s *State) PushToken(ctx context.Context) (string, error) {
	var token string
	_, err := s.get(ctx, KeyPushToken, &token)
	return token, err
}

// SetPushToken persists the push token
func (s *State) SetPushToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyPushToken, token)
}

// DeviceID returns the install identifier, generating it on first use
func (s *State) DeviceID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deviceID string
	if _, err := s.get(ctx, KeyDeviceID, &deviceID); err != nil {
		return "", err
	}
	if deviceID != "" {
		return deviceID, nil
	}

	deviceID = uuid.NewString()
	if err := s.set(ctx, KeyDeviceID, deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}

// Cookies returns the persisted cookie snapshot
func (s *State) Cookies(ctx context.Context) (types.CookieMap, error) {
	cookies := make(types.CookieMap)
	if _, err := s.get(ctx, KeySessionCookies, &cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

// SaveCookies replaces the persisted cookie snapshot
func (s *State) SaveCookies(ctx context.Context, cookies types.CookieMap) error {
	return s.set(ctx, KeySessionCookies, cookies)
}
