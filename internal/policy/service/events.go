package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"polis/internal/policy/models"
)

// HandleEvent runs the follow-up reactions to a domain event. The broker
// consumer feeds events back through here; local wiring may call it inline
// after publishing.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	switch e := event.(type) {
	case models.CompletedInInsuranceEvent:
		return s.UpdateOffer(ctx, e.Reference, e.InsuranceReference)

	case models.CompletedEvent:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.CreateAccrueReward(gctx, e.Reference, e.InsuranceReference)
		})
		g.Go(func() error {
			_, err := s.DownloadPDF(gctx, e.Reference)
			return err
		})
		return g.Wait()

	case models.AccrueRewardCreatedEvent:
		return s.ConfirmAccrueReward(ctx, e.Reference, e.InsuranceReference)

	case models.RetentionRewardCreatedEvent:
		return s.ConfirmRetentionReward(ctx, e.Reference, e.InsuranceReference)

	case models.OperatorErrorEvent:
		return s.CancelAccrueReward(ctx, e.Reference, e.InsuranceReference)

	case models.RescindedEvent:
		return s.CreateRetentionReward(ctx, e.Reference, e.InsuranceReference)

	case models.ReissuedEvent:
		return s.CreateRetentionReward(ctx, e.Reference, e.InsuranceReference)

	case models.RestoredEvent:
		return s.CancelRetentionReward(ctx, e.Reference, e.InsuranceReference)

	default:
		// StatusUpdatedEvent and future notifications have no local reaction.
		return nil
	}
}
