package usecase

import (
	"context"
	"errors"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
)

// Notifiers fans a transition out to every listener and joins their errors.
type Notifiers []domrepo.TransitionNotifier

func (ns Notifiers) NotifyTransition(ctx context.Context, ev models.PhaseTransitionEvent) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.NotifyTransition(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to TransitionNotifier.
type NotifierFunc func(ctx context.Context, ev models.PhaseTransitionEvent) error

func (f NotifierFunc) NotifyTransition(ctx context.Context, ev models.PhaseTransitionEvent) error {
	return f(ctx, ev)
}

var (
	_ domrepo.TransitionNotifier = Notifiers(nil)
	_ domrepo.TransitionNotifier = NotifierFunc(nil)
)
