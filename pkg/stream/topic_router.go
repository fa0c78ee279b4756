package stream

import (
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

// TopicRouter determines which topics an event should be published to
type TopicRouter struct {
	topics Topics
}

// NewTopicRouter creates a new topic router with the given topic configuration
func NewTopicRouter(topics Topics) *TopicRouter {
	return &TopicRouter{
		topics: topics,
	}
}

// Route returns the list of topics this finding should be published to.
//
// Routing rules:
//   - ALL findings go to topics.Findings
//   - CONFIRMED_LEAK findings and Critical risk findings also go to topics.Confirmed
//
// Topics with an empty name are skipped.
func (r *TopicRouter) Route(finding Finding) []string {
	var topics []string
	if r.topics.Findings != "" {
		topics = append(topics, r.topics.Findings)
	}

	if r.topics.Confirmed != "" &&
		(finding.Tier == scan.TierConfirmedLeak || finding.Risk == scan.RiskCritical) {
		topics = append(topics, r.topics.Confirmed)
	}

	return topics
}

// ScoreTopics returns the topics for source score events.
func (r *TopicRouter) ScoreTopics() []string {
	return nonEmpty(r.topics.Scores)
}

// AlertTopics returns the topics for alert events.
func (r *TopicRouter) AlertTopics() []string {
	return nonEmpty(r.topics.Alerts)
}

func nonEmpty(topic string) []string {
	if topic == "" {
		return nil
	}
	return []string{topic}
}
