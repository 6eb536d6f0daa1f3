package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/onboardly/internal/store"
)

// LocalStorage keeps tour progress in the page's own localStorage, under
// the same key and JSON shape the in-page widget uses. Progress is therefore
// scoped to the origin currently loaded in the tab.
type LocalStorage struct {
	s       *Session
	Timeout time.Duration
}

func NewLocalStorage(s *Session) *LocalStorage {
	return &LocalStorage{s: s, Timeout: 5 * time.Second}
}

func (l *LocalStorage) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), l.Timeout)
}

func (l *LocalStorage) Load(tourID string) (store.Progress, bool, error) {
	ctx, cancel := l.context()
	defer cancel()

	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	expr := `(() => {
  const v = window.localStorage.getItem(` + quote(store.Key(tourID)) + `);
  return v === null ? { found: false } : { found: true, value: v };
})()`
	if err := l.s.Evaluate(ctx, expr, &res); err != nil {
		return store.Progress{}, false, fmt.Errorf("failed to read local storage: %w", err)
	}
	if !res.Found {
		return store.Progress{}, false, nil
	}
	p, err := store.Decode([]byte(res.Value))
	if err != nil {
		return store.Progress{}, false, err
	}
	return p, true, nil
}

func (l *LocalStorage) Save(tourID string, p store.Progress) error {
	data, err := store.Encode(p)
	if err != nil {
		return err
	}
	ctx, cancel := l.context()
	defer cancel()
	expr := `window.localStorage.setItem(` + quote(store.Key(tourID)) + `, ` + quote(string(data)) + `), true`
	if err := l.s.Evaluate(ctx, expr, nil); err != nil {
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	return nil
}

func (l *LocalStorage) Clear(tourID string) error {
	ctx, cancel := l.context()
	defer cancel()
	expr := `window.localStorage.removeItem(` + quote(store.Key(tourID)) + `), true`
	if err := l.s.Evaluate(ctx, expr, nil); err != nil {
		return fmt.Errorf("failed to clear local storage: %w", err)
	}
	return nil
}

var _ store.Store = (*LocalStorage)(nil)
