package scan

import (
	"sync"
)

// PatternMatcher finds and validates candidates for one category
type PatternMatcher interface {
	// GetID returns the pattern identifier
	GetID() string

	// GetName returns the human-readable pattern name
	GetName() string

	// GetCategory returns the category of every candidate this matcher emits
	GetCategory() Category

	// Match finds all candidate spans in text
	Match(text string) []Candidate

	// Validate checks a candidate value against its context window
	Validate(value, context string) bool
}

// PatternRegistry manages pattern matchers
type PatternRegistry interface {
	// Register adds a pattern matcher to the registry, replacing any
	// matcher with the same ID
	Register(matcher PatternMatcher)

	// Get returns a matcher by ID
	Get(id string) (PatternMatcher, bool)

	// GetByCategory returns the matchers emitting a category
	GetByCategory(category Category) []PatternMatcher

	// GetAll returns all registered matchers in registration order
	GetAll() []PatternMatcher

	// GetEnabled returns matchers whose category is not disabled
	GetEnabled(disabled []Category) []PatternMatcher
}

// patternRegistry manages all pattern matchers
type patternRegistry struct {
	mu         sync.RWMutex
	ordered    []PatternMatcher
	byID       map[string]int
	byCategory map[Category][]PatternMatcher
}

// NewPatternRegistry creates a new, empty pattern registry
func NewPatternRegistry() PatternRegistry {
	return &patternRegistry{
		byID:       make(map[string]int),
		byCategory: make(map[Category][]PatternMatcher),
	}
}

// NewDefaultRegistry creates a registry with all built-in matchers
func NewDefaultRegistry() PatternRegistry {
	registry := NewPatternRegistry()
	for _, m := range BuiltinMatchers() {
		registry.Register(m)
	}
	return registry
}

// Register adds a pattern matcher to the registry
func (r *patternRegistry) Register(matcher PatternMatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := matcher.GetID()
	if i, ok := r.byID[id]; ok {
		r.ordered[i] = matcher
	} else {
		r.byID[id] = len(r.ordered)
		r.ordered = append(r.ordered, matcher)
	}
	r.reindex()
}

// reindex rebuilds the category index. Must be called with lock held.
func (r *patternRegistry) reindex() {
	r.byCategory = make(map[Category][]PatternMatcher, len(r.ordered))
	for _, m := range r.ordered {
		r.byCategory[m.GetCategory()] = append(r.byCategory[m.GetCategory()], m)
	}
}

// Get returns a matcher by ID
func (r *patternRegistry) Get(id string) (PatternMatcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.ordered[i], true
}

// GetByCategory returns the matchers emitting a category
func (r *patternRegistry) GetByCategory(category Category) []PatternMatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matchers := r.byCategory[category]
	result := make([]PatternMatcher, len(matchers))
	copy(result, matchers)
	return result
}

// GetAll returns all registered matchers
func (r *patternRegistry) GetAll() []PatternMatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PatternMatcher, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// GetEnabled returns matchers whose category is not in disabled
func (r *patternRegistry) GetEnabled(disabled []Category) []PatternMatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skip := make(map[Category]bool, len(disabled))
	for _, c := range disabled {
		skip[c] = true
	}

	result := make([]PatternMatcher, 0, len(r.ordered))
	for _, matcher := range r.ordered {
		if !skip[matcher.GetCategory()] {
			result = append(result, matcher)
		}
	}
	return result
}
