package translator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LanguageSet caches the provider's supported language codes for submission
// validation. Load it once at startup and refresh periodically; a refresh
// failure keeps the previous set rather than blocking submissions.
type LanguageSet struct {
	lister LanguageLister

	mu    sync.RWMutex
	codes map[string]bool
}

// NewLanguageSet builds an empty set backed by the given lister.
func NewLanguageSet(lister LanguageLister) *LanguageSet {
	return &LanguageSet{lister: lister, codes: make(map[string]bool)}
}

// Load fetches the current language list from the provider.
func (s *LanguageSet) Load(ctx context.Context) error {
	codes, err := s.lister.Languages(ctx)
	if err != nil {
		return fmt.Errorf("load supported languages: %w", err)
	}
	next := make(map[string]bool, len(codes))
	for _, c := range codes {
		next[c] = true
	}
	s.mu.Lock()
	s.codes = next
	s.mu.Unlock()
	return nil
}

// Supported reports whether the provider accepts the language code.
func (s *LanguageSet) Supported(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codes[code]
}

// Len returns the number of cached language codes.
func (s *LanguageSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

// RefreshLoop reloads the set on the given interval until ctx is cancelled.
// Errors are delivered to onErr (may be nil) and do not stop the loop.
func (s *LanguageSet) RefreshLoop(ctx context.Context, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Load(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
