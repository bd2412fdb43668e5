package relay

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"courier/internal/logging"
	"courier/internal/services"
	"courier/internal/store"
)

var windowPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseSince resolves a read-back window against now. It accepts "" or "all"
// (everything), an absolute epoch in seconds, or a relative window such as
// 30s, 10m, 1h or 2d. The result is an epoch lower bound.
func ParseSince(since string, now time.Time) (int64, error) {
	since = strings.TrimSpace(strings.ToLower(since))
	if since == "" || since == "all" {
		return 0, nil
	}
	if epoch, err := strconv.ParseInt(since, 10, 64); err == nil {
		if epoch < 0 {
			return 0, services.Wrap(services.ErrInvalidFormat, component, "since", "negative epoch", nil)
		}
		return epoch, nil
	}
	m := windowPattern.FindStringSubmatch(since)
	if m == nil {
		return 0, services.Wrap(services.ErrInvalidFormat, component, "since",
			fmt.Sprintf("unrecognized window %q", since), nil)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrInvalidFormat, component, "since", "window out of range", err)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, services.Wrap(services.ErrInvalidFormat, component, "since",
			fmt.Sprintf("window %q out of range", since), nil)
	}
	// A window reaching past the Unix epoch covers everything.
	return max(now.Add(-time.Duration(n)*unit).Unix(), 0), nil
}

// ListSince returns the newest messages inside the window, up to the
// history limit, oldest first.
func (s *Service) ListSince(ctx context.Context, channel, since string) ([]store.Message, error) {
	if err := s.validateChannel(channel, "list"); err != nil {
		return nil, err
	}
	from, err := ParseSince(since, s.clock.Now())
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.QueryMessages(ctx, channel, from, s.historyLimit)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, component, "list", "channel="+channel, err)
	}
	return msgs, nil
}

// DeleteAll removes every stored message for channel.
func (s *Service) DeleteAll(ctx context.Context, channel string) (int64, error) {
	if err := s.validateChannel(channel, "delete"); err != nil {
		return 0, err
	}
	removed, err := s.store.DeleteMessages(ctx, channel)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, component, "delete", "channel="+channel, err)
	}
	s.logger.Info("channel history deleted", logging.Channel(channel), logging.Int64("deleted", removed))
	return removed, nil
}

// HistoryLimit is the maximum number of rows ListSince returns.
func (s *Service) HistoryLimit() int {
	return s.historyLimit
}
