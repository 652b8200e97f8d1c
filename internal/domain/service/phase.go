package service

import (
	"context"

	"TFTracker/internal/domain/models"

	"github.com/google/uuid"
)

// PhaseClassifier decides the phase of an asset from its recent history.
// ok is false when there is not enough market data to classify.
type PhaseClassifier interface {
	Evaluate(ctx context.Context, assetID uuid.UUID, previous *models.Phase) (res models.PhaseResult, ok bool, err error)
}
