package tour

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rahul/onboardly/internal/governance"
)

// ErrConfigLoad matches every failure to obtain a tour definition.
var ErrConfigLoad = errors.New("tour config load failed")

// LoadError reports why a definition could not be loaded.
type LoadError struct {
	TourID string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load tour %q: %v", e.TourID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrConfigLoad }

// Source resolves a tour id to a definition. Sources do not retry.
type Source interface {
	Load(ctx context.Context, tourID string) (*Definition, error)
}

// Static serves definitions supplied in memory.
type Static map[string]*Definition

func (s Static) Load(ctx context.Context, tourID string) (*Definition, error) {
	def, ok := s[tourID]
	if !ok {
		return nil, &LoadError{TourID: tourID, Err: errors.New("unknown tour")}
	}
	return def, nil
}

var fileExtensions = []string{".yaml", ".yml", ".json"}

// FileSource loads <dir>/<tourID>.{yaml,yml,json} and validates it. Parsed
// definitions are cached until the file changes (see Watch).
type FileSource struct {
	dir    string
	policy governance.PolicyEngine

	mu    sync.RWMutex
	cache map[string]*Definition
}

func NewFileSource(dir string, policy governance.PolicyEngine) *FileSource {
	return &FileSource{
		dir:    dir,
		policy: policy,
		cache:  make(map[string]*Definition),
	}
}

func (s *FileSource) Load(ctx context.Context, tourID string) (*Definition, error) {
	s.mu.RLock()
	def, ok := s.cache[tourID]
	s.mu.RUnlock()
	if ok {
		return def, nil
	}

	path, err := s.find(tourID)
	if err != nil {
		return nil, &LoadError{TourID: tourID, Err: err}
	}
	def, verrs := ValidateFile(ctx, path, s.policy)
	if errs := Errors(verrs); len(errs) > 0 {
		return nil, &LoadError{TourID: tourID, Err: errors.Join(toErrors(errs)...)}
	}
	if def.TourID != tourID {
		return nil, &LoadError{TourID: tourID, Err: fmt.Errorf("%s declares tourId %q", path, def.TourID)}
	}

	s.mu.Lock()
	s.cache[tourID] = def
	s.mu.Unlock()
	return def, nil
}

// Invalidate drops a cached definition.
func (s *FileSource) Invalidate(tourID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, tourID)
}

func (s *FileSource) find(tourID string) (string, error) {
	if tourID == "" || strings.ContainsAny(tourID, `/\`) {
		return "", fmt.Errorf("invalid tour id %q", tourID)
	}
	for _, ext := range fileExtensions {
		path := filepath.Join(s.dir, tourID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no definition file for %q in %s", tourID, s.dir)
}

// Watch reloads and revalidates definitions when their files change, so the
// next Load sees the edit. It returns once the watcher is running; watching
// stops when ctx is done.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				ext := filepath.Ext(ev.Name)
				if !isDefinitionFile(ext) {
					continue
				}
				tourID := strings.TrimSuffix(filepath.Base(ev.Name), ext)
				s.Invalidate(tourID)
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					log.Printf("tour: %s %s", tourID, ev.Op)
					continue
				}
				def, err := s.Load(ctx, tourID)
				if err != nil {
					log.Printf("tour: %s changed but does not load: %v", tourID, err)
					continue
				}
				log.Printf("tour: %s reloaded (%d steps)", tourID, len(def.Steps))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("tour: watcher error: %v", err)
			}
		}
	}()
	return nil
}

func isDefinitionFile(ext string) bool {
	for _, e := range fileExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func toErrors(verrs []*ValidationError) []error {
	out := make([]error, len(verrs))
	for i, e := range verrs {
		out[i] = e
	}
	return out
}
