package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the behavioral state of an asset.
type Phase string

const (
	PhaseCooperate Phase = "COOPERATE"
	PhaseDefect    Phase = "DEFECT"
	PhaseForgive   Phase = "FORGIVE"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseCooperate, PhaseDefect, PhaseForgive:
		return true
	default:
		return false
	}
}

func (p Phase) String() string { return string(p) }

// PhaseResult is the classifier output for a single evaluation.
type PhaseResult struct {
	Phase      Phase     `json:"phase"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	ComputedAt time.Time `json:"computed_at"`
}

// PhaseState is the current classification of one asset.
type PhaseState struct {
	AssetID    uuid.UUID `json:"asset_id"`
	Phase      Phase     `json:"phase"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	ComputedAt time.Time `json:"computed_at"`
}

// PhaseHistory records one transition. From is nil for the first classification.
type PhaseHistory struct {
	ID         uuid.UUID `json:"id"`
	AssetID    uuid.UUID `json:"asset_id"`
	From       *Phase    `json:"from_phase"`
	To         Phase     `json:"to_phase"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	ChangedAt  time.Time `json:"changed_at"`
}

// PhaseTransitionEvent is published after a transition has been committed.
type PhaseTransitionEvent struct {
	AssetID    uuid.UUID `json:"asset_id"`
	Ticker     string    `json:"ticker"`
	From       *Phase    `json:"from_phase"`
	To         Phase     `json:"to_phase"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	ChangedAt  time.Time `json:"changed_at"`
}

// PhaseView joins a state with its asset for read APIs.
type PhaseView struct {
	AssetID    uuid.UUID `json:"asset_id"`
	Ticker     string    `json:"ticker"`
	AssetName  string    `json:"asset_name"`
	AssetType  AssetType `json:"asset_type"`
	Phase      Phase     `json:"phase"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	ComputedAt time.Time `json:"computed_at"`
}

// PhaseHistoryView is a history entry enriched with the asset ticker.
type PhaseHistoryView struct {
	PhaseHistory
	Ticker string `json:"ticker"`
}

// NewPhaseView combines an asset with its state.
func NewPhaseView(a Asset, s PhaseState) PhaseView {
	return PhaseView{
		AssetID:    a.ID,
		Ticker:     a.Ticker,
		AssetName:  a.Name,
		AssetType:  a.Type,
		Phase:      s.Phase,
		Confidence: s.Confidence,
		Rationale:  s.Rationale,
		ComputedAt: s.ComputedAt,
	}
}
