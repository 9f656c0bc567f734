package core

import (
	"context"
	"time"

	"studio-management-api/internal/docstore"
	"studio-management-api/internal/model"
)

// slotTaken reports whether an active appointment already occupies the
// (date, time) slot. Cancelled and completed appointments never conflict,
// and excludeID keeps a no-op reschedule from colliding with itself. The
// check is advisory: the store's partial unique index is the backstop for
// two creates racing past it (see UniqueSpecs).
func (s *Service) slotTaken(ctx context.Context, date, tm, excludeID string) (bool, error) {
	f := docstore.Filter{
		"date":   date,
		"time":   tm,
		"status": docstore.In{string(model.StatusPending), string(model.StatusConfirmed)},
	}
	if excludeID != "" {
		f["id"] = docstore.Ne{Value: excludeID}
	}
	n, err := s.store.Count(ctx, colAppointments, f)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// normalizeDate reduces the input to a calendar day. Full timestamps are
// accepted and truncated so a zone-suffixed value from a client cannot
// produce a false slot mismatch.
func normalizeDate(raw string) (string, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("2006-01-02"), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return "", invalid("date", "must be YYYY-MM-DD")
}

func normalizeTime(raw string) (string, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return "", invalid("time", "must be HH:MM")
	}
	return t.Format("15:04"), nil
}
