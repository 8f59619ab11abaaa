// Package businesshours answers whether a tenant is inside its configured
// working hours, for assignment rule conditions.
package businesshours

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Window is one weekday's opening window in the tenant's timezone.
type Window struct {
	Timezone string
	Weekday  time.Weekday
	OpensAt  string // "09:00"
	ClosesAt string // "18:00"
}

// WindowStore loads a tenant's configured windows.
type WindowStore interface {
	ListWindows(ctx context.Context, tenantID string) ([]Window, error)
}

// Oracle evaluates business-hours membership. Tenants with no configured
// windows are treated as always open.
type Oracle struct {
	log   *slog.Logger
	store WindowStore
	now   func() time.Time
}

func NewOracle(log *slog.Logger, store WindowStore) *Oracle {
	return &Oracle{
		log:   log.With(slog.String("service", "businesshours")),
		store: store,
		now:   time.Now,
	}
}

// IsWithinBusinessHours reports whether the tenant's local time falls inside
// any window for the current weekday.
func (o *Oracle) IsWithinBusinessHours(ctx context.Context, tenantID string) (bool, error) {
	windows, err := o.store.ListWindows(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("load business hours: %w", err)
	}
	if len(windows) == 0 {
		return true, nil
	}

	for _, w := range windows {
		within, err := o.windowContains(w)
		if err != nil {
			o.log.Warn("skipping malformed business-hours window",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()))
			continue
		}
		if within {
			return true, nil
		}
	}
	return false, nil
}

func (o *Oracle) windowContains(w Window) (bool, error) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return false, fmt.Errorf("timezone %q: %w", w.Timezone, err)
	}
	local := o.now().In(loc)
	if local.Weekday() != w.Weekday {
		return false, nil
	}
	opens, err := minutesOfDay(w.OpensAt)
	if err != nil {
		return false, err
	}
	closes, err := minutesOfDay(w.ClosesAt)
	if err != nil {
		return false, err
	}
	current := local.Hour()*60 + local.Minute()
	return current >= opens && current < closes, nil
}

func minutesOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		// TIME columns come back with seconds.
		t, err = time.Parse("15:04:05", value)
		if err != nil {
			return 0, fmt.Errorf("time of day %q: %w", value, err)
		}
	}
	return t.Hour()*60 + t.Minute(), nil
}
