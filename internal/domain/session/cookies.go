package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"go.uber.org/zap"
)

// ErrCookieStoreUnavailable wraps any failure to read or write cookies.
// The session continues without persisted cookies.
var ErrCookieStoreUnavailable = errors.New("cookie store unavailable")

// CookiePersister stores the cookie snapshot across launches
type CookiePersister interface {
	Cookies(ctx context.Context) (types.CookieMap, error)
	SaveCookies(ctx context.Context, cookies types.CookieMap) error
}

// Persist snapshots the primary context's cookie store
func (t *Tracker) Persist(ctx context.Context) error {
	t.mu.Lock()
	primary := t.primary
	t.mu.Unlock()

	if primary == nil {
		return ErrNotOpen
	}
	return t.persistFrom(ctx, primary)
}

// Restore installs every persisted cookie into the primary context
func (t *Tracker) Restore(ctx context.Context) error {
	t.mu.Lock()
	primary := t.primary
	t.mu.Unlock()

	if primary == nil {
		return ErrNotOpen
	}
	return t.restoreInto(ctx, primary)
}

func (t *Tracker) persistFrom(ctx context.Context, c surface.Context) error {
	if t.cookies == nil {
		return nil
	}

	err := t.snapshot(ctx, c)
	result := "ok"
	if err != nil {
		result = "error"
		t.logger.Warn("cookie persist failed",
			zap.String("context_id", c.ID().String()),
			zap.Error(err))
	}
	if t.metrics != nil {
		t.metrics.RecordCookiePersist(result)
	}
	return err
}

func (t *Tracker) snapshot(ctx context.Context, c surface.Context) error {
	all, err := c.Cookies().AllCookies(ctx)
	if err != nil {
		return fmt.Errorf("%w: read: %v", ErrCookieStoreUnavailable, err)
	}

	now := t.now()
	live := all[:0:0]
	for _, ck := range all {
		if !ck.Expired(now) {
			live = append(live, ck)
		}
	}

	if err := t.cookies.SaveCookies(ctx, types.GroupCookies(live)); err != nil {
		return fmt.Errorf("%w: save: %v", ErrCookieStoreUnavailable, err)
	}
	return nil
}

func (t *Tracker) restoreInto(ctx context.Context, c surface.Context) error {
	if t.cookies == nil {
		return nil
	}

	stored, err := t.cookies.Cookies(ctx)
	if err != nil {
		err = fmt.Errorf("%w: load: %v", ErrCookieStoreUnavailable, err)
		t.logger.Warn("cookie restore skipped", zap.Error(err))
		return err
	}

	now := t.now()
	restored := 0
	var firstErr error
	for _, ck := range stored.List() {
		if ck.Expired(now) {
			continue
		}
		if err := c.Cookies().SetCookie(ctx, ck); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: set %s/%s: %v", ErrCookieStoreUnavailable, ck.Domain, ck.Name, err)
			}
			continue
		}
		restored++
	}

	t.logger.Debug("cookies restored",
		zap.String("context_id", c.ID().String()),
		zap.Int("count", restored))
	if firstErr != nil {
		t.logger.Warn("cookie restore incomplete", zap.Error(firstErr))
	}
	return firstErr
}

func defaultNow() time.Time { return time.Now() }
