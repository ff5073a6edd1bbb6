// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Publisher pushes ArticleIngested events to a Pub/Sub topic. Delivery is
// at-least-once; consumers deduplicate on the article_id attribute.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals the event to JSON and publishes it to the topic.
func (p *Publisher) Publish(ctx context.Context, event ingest.ArticleIngested) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"article_id":       event.ArticleID,
			"source_id":        event.SourceID,
			"pipeline_version": event.PipelineVersion,
		},
	}
	result := p.topic.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending publishes.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}
