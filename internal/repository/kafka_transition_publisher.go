package repository

import (
	"context"
	"fmt"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	pkgkafka "TFTracker/pkg/kafka"
)

// KafkaTransitionPublisher implements TransitionNotifier by publishing each
// transition as JSON keyed by asset id, so one asset's events stay ordered.
type KafkaTransitionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTransitionPublisher(producer *pkgkafka.Producer, topic string) *KafkaTransitionPublisher {
	return &KafkaTransitionPublisher{producer: producer, topic: topic}
}

func (p *KafkaTransitionPublisher) NotifyTransition(ctx context.Context, ev models.PhaseTransitionEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.AssetID.String()), ev); err != nil {
		return fmt.Errorf("publish transition: %w", err)
	}
	return nil
}

func (p *KafkaTransitionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.TransitionNotifier = (*KafkaTransitionPublisher)(nil)
