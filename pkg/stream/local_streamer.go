package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamerClosed is returned when attempting to stream to a closed streamer.
var ErrStreamerClosed = errors.New("streamer is closed")

// StreamCallback is called for each event published to a topic.
type StreamCallback func(topic string, event Event)

// LocalStreamer is an in-memory implementation of Streamer for library and
// CLI use. It routes events to topics and invokes callbacks for each
// published message.
type LocalStreamer struct {
	router    *TopicRouter
	config    *StreamerConfig
	callbacks []StreamCallback
	mu        sync.RWMutex
	closed    bool
}

// Ensure LocalStreamer implements the Streamer interface.
var _ Streamer = (*LocalStreamer)(nil)

// NewLocalStreamer creates a new local streamer with the given configuration.
// If config is nil, DefaultStreamerConfig() is used.
func NewLocalStreamer(config *StreamerConfig) *LocalStreamer {
	if config == nil {
		config = DefaultStreamerConfig()
	}
	return &LocalStreamer{
		router:    NewTopicRouter(config.Topics),
		config:    config,
		callbacks: make([]StreamCallback, 0),
	}
}

// OnPublish registers a callback that will be invoked for each event
// published to a topic. Callbacks run in registration order.
func (s *LocalStreamer) OnPublish(cb StreamCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Stream publishes findings to the appropriate topics based on routing rules.
func (s *LocalStreamer) Stream(ctx context.Context, findings []Finding) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStreamerClosed
	}

	for _, finding := range findings {
		if err := s.deliver(ctx, s.router.Route(finding), finding); err != nil {
			return err
		}
	}
	return nil
}

// StreamScore publishes a source score.
func (s *LocalStreamer) StreamScore(ctx context.Context, event ScoreEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStreamerClosed
	}
	return s.deliver(ctx, s.router.ScoreTopics(), event)
}

// StreamAlert publishes an alert.
func (s *LocalStreamer) StreamAlert(ctx context.Context, event AlertEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStreamerClosed
	}
	return s.deliver(ctx, s.router.AlertTopics(), event)
}

func (s *LocalStreamer) deliver(ctx context.Context, topics []string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, topic := range topics {
		for _, cb := range s.callbacks {
			cb(topic, ev)
		}
	}
	return nil
}

// Close marks the streamer as closed. Subsequent calls return ErrStreamerClosed.
func (s *LocalStreamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
