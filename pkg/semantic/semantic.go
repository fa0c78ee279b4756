// Package semantic provides zero-shot judges for deep-mode scanning and the
// wrappers that make them safe to call from the scan path: a guard with a
// timeout, circuit breaker and rate limit, and a memoising cache.
//
// Every judge implements scan.Judge. Errors returned by these judges are
// treated by the scanner as a degraded judgment, never as a scan failure.
package semantic

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

var (
	// ErrNoJudge is returned by New when no provider is configured.
	ErrNoJudge = errors.New("semantic: no judge configured")
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("semantic: circuit breaker open")
	// ErrRateLimited is returned when the call budget is exhausted.
	ErrRateLimited = errors.New("semantic: rate limited")
	// ErrEmptyDistribution is returned when a judge yields no usable scores.
	ErrEmptyDistribution = errors.New("semantic: empty distribution")
)

// Provider names accepted by New.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderRemote = "remote"
)

// Settings describes a complete judge stack.
type Settings struct {
	Provider string
	Model    string
	Endpoint string
	APIKey   string

	Guard GuardConfig
	Cache CacheConfig

	// RedisAddr enables the shared cache tier when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New builds the configured judge wrapped in a guard and a cache. The
// returned close function releases connections and must be called once the
// judge is no longer used. ErrNoJudge is returned for the "none" provider.
func New(s Settings, logger *slog.Logger) (scan.Judge, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		judge   scan.Judge
		closers []func() error
	)

	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderNone:
		return nil, nil, ErrNoJudge
	case ProviderOpenAI:
		judge = NewOpenAIJudge(OpenAIConfig{APIKey: s.APIKey, BaseURL: s.Endpoint, Model: s.Model})
	case ProviderRemote:
		if s.Endpoint == "" {
			return nil, nil, fmt.Errorf("remote judge: endpoint is required")
		}
		conn, err := grpc.NewClient(s.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("remote judge: dial %s: %w", s.Endpoint, err)
		}
		judge = NewRemoteJudge(conn)
		closers = append(closers, conn.Close)
	default:
		return nil, nil, fmt.Errorf("unknown semantic provider %q", s.Provider)
	}

	guardCfg := s.Guard
	if guardCfg.Name == "" {
		guardCfg.Name = strings.ToLower(s.Provider)
	}
	judge = NewGuard(judge, guardCfg, logger)

	var shared SharedStore
	if s.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		shared = NewRedisStore(client, "")
		closers = append(closers, client.Close)
	}

	cache, err := NewCache(judge, s.Cache, shared, logger)
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}
	closers = append(closers, func() error { cache.Close(); return nil })

	logger.Info("semantic judge configured",
		"provider", s.Provider,
		"model", s.Model,
		"timeout", s.Guard.Timeout,
		"shared_cache", shared != nil,
	)
	return cache, func() error { return closeAll(closers) }, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// normalize turns raw label scores into a distribution over labels. Labels
// not requested are ignored, missing labels score 0 and negative scores are
// clamped, then the remainder is scaled to sum to 1.
func normalize(scores map[string]float64, labels []string) (scan.Distribution, error) {
	kept := make(map[string]float64, len(labels))
	if len(labels) == 0 {
		for l, s := range scores {
			kept[l] = s
		}
	} else {
		for _, l := range labels {
			kept[l] = scores[l]
		}
	}

	total := 0.0
	for l, s := range kept {
		if s < 0 {
			s = 0
			kept[l] = 0
		}
		total += s
	}
	if total <= 0 {
		return nil, ErrEmptyDistribution
	}
	for l := range kept {
		kept[l] /= total
	}
	return scan.NewDistribution(kept), nil
}

// DefaultTimeout bounds one judge call when the guard has no timeout.
const DefaultTimeout = 3 * time.Second
