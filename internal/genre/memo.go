package genre

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/logging"
)

// ErrDisabled is returned by the lookup used when no API key is configured
var ErrDisabled = errors.New("genre lookup disabled")

type disabled struct{}

func (disabled) Genres(context.Context, string, string) ([]string, error) {
	return nil, ErrDisabled
}

// Disabled returns a Lookup that always fails with ErrDisabled
func Disabled() Lookup {
	return disabled{}
}

// Memo wraps a Lookup for the duration of a run. Concurrent calls for the same
// name and year share one upstream request and successful answers are kept.
// Failures are not remembered.
type Memo struct {
	next    Lookup
	group   singleflight.Group
	results cmap.ConcurrentMap[string, []string]
}

// NewMemo wraps next
func NewMemo(next Lookup) *Memo {
	return &Memo{
		next:    next,
		results: cmap.New[[]string](),
	}
}

func memoKey(name, year string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.TrimSpace(year)
}

// Genres implements Lookup
func (m *Memo) Genres(ctx context.Context, name, year string) ([]string, error) {
	key := memoKey(name, year)
	if genres, ok := m.results.Get(key); ok {
		return genres, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// Another caller may have finished while this one waited
		if genres, ok := m.results.Get(key); ok {
			return genres, nil
		}
		genres, err := m.next.Genres(ctx, name, year)
		if err != nil {
			return nil, err
		}
		m.results.Set(key, genres)
		return genres, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Len returns the number of remembered answers
func (m *Memo) Len() int {
	return m.results.Count()
}

// FromConfig builds the run's lookup: a memoized TMDB client, or Disabled
// when no API key is set.
func FromConfig(cfg *config.Config, logger *slog.Logger) Lookup {
	if logger == nil {
		logger = logging.NewNop()
	}
	client, err := New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
	if err != nil {
		logger.Info("genre lookup disabled", "component", "genre", "reason", err)
		return Disabled()
	}
	return NewMemo(client)
}
