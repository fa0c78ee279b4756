package scan

import (
	"context"
	"log/slog"
)

// Scanner is the main interface for content scanning
type Scanner interface {
	// Scan finds PII in text. It returns an error only when ctx is done;
	// empty input, skipped input and clean input are ordinary results.
	Scan(ctx context.Context, text string, opts Options) (*Result, error)

	// Patterns returns all patterns this scanner can detect
	Patterns() []PatternInfo
}

// PatternInfo describes one registered pattern
type PatternInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Enabled  bool     `json:"enabled"`
}

// Option configures a scanner
type Option func(*defaultScanner)

// WithLogger sets the scanner logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *defaultScanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJudge enables deep mode with the given semantic judge
func WithJudge(judge Judge) Option {
	return func(s *defaultScanner) {
		s.judge = judge
	}
}

// WithSentenceLocator replaces the rule-based sentence locator. A nil
// locator makes every deep-mode candidate fall back to the no-sentence risk.
func WithSentenceLocator(locator SentenceLocator) Option {
	return func(s *defaultScanner) {
		s.locator = locator
	}
}

// WithNameFinder replaces the heuristic person-name finder. A nil finder
// disables PERSON findings and the nearby-person boost.
func WithNameFinder(finder NameFinder) Option {
	return func(s *defaultScanner) {
		s.names = finder
	}
}

// WithDisambiguator enables the fake-data pass after classification
func WithDisambiguator(d *Disambiguator) Option {
	return func(s *defaultScanner) {
		s.disambiguator = d
	}
}

// WithRegistry replaces the built-in pattern registry
func WithRegistry(registry PatternRegistry) Option {
	return func(s *defaultScanner) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithChunkSize sets the length above which input is scanned in windows
func WithChunkSize(size int) Option {
	return func(s *defaultScanner) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithDisabledCategories turns off detection for the given categories
func WithDisabledCategories(categories ...Category) Option {
	return func(s *defaultScanner) {
		s.disabled = append(s.disabled, categories...)
	}
}

// WithPrescreen replaces the default pre-screen
func WithPrescreen(p *Prescreen) Option {
	return func(s *defaultScanner) {
		if p != nil {
			s.prescreen = p
		}
	}
}
