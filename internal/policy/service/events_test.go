package service

import (
	"polis/internal/policy/models"
)

// =============================================================================
// Event Reaction Tests
// =============================================================================
// HandleEvent is what the broker consumer calls; these tests feed the events
// the aggregate actually publishes back through it and assert the follow-up
// side effects landed.

func (s *ServiceSuite) TestHandleEvent() {
	s.Run("completed-in-insurance refreshes the offer", func() {
		created := s.create()
		submitted := s.submit(created.Reference)
		insRef := submitted.InsuranceReference()
		s.callback("PAYED", insRef, "", nil)
		state := s.callback("COMPLETED_IN_INSURANCE", insRef, "GID-77", nil)
		s.Require().Equal(models.StatusCompletedInInsurance, state.Status)

		err := s.service.HandleEvent(s.ctx, models.CompletedInInsuranceEvent{
			Reference: created.Reference, InsuranceReference: insRef,
		})
		s.Require().NoError(err)
		s.Equal(1, s.offers.calls)

		completed, err := s.service.GetPolicy(s.ctx, created.Reference)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, completed.Status)
	})

	s.Run("completed opens the reward and fetches the document", func() {
		state := s.complete()

		err := s.service.HandleEvent(s.ctx, models.CompletedEvent{
			Reference: state.Reference, InsuranceReference: state.InsuranceReference(),
		})
		s.Require().NoError(err)
		s.Equal(1, s.ledger.createAccrueCalls)
		s.NotEmpty(s.objects.uploads[state.Reference])

		policy, _, err := s.repo.Get(s.ctx, state.Reference)
		s.Require().NoError(err)
		s.Require().NotNil(policy.AccrueRewardDocument())
		s.True(policy.State().Downloaded)
	})

	s.Run("reward-created events confirm the documents", func() {
		state := s.complete()
		insRef := state.InsuranceReference()
		s.Require().NoError(s.service.CreateAccrueReward(s.ctx, state.Reference, insRef))

		err := s.service.HandleEvent(s.ctx, models.AccrueRewardCreatedEvent{
			Reference: state.Reference, InsuranceReference: insRef,
		})
		s.Require().NoError(err)

		policy, _, err := s.repo.Get(s.ctx, state.Reference)
		s.Require().NoError(err)
		s.True(policy.AccrueRewardDocument().IsConfirmed())
	})

	s.Run("rescind reaction opens the clawback", func() {
		state := s.complete()
		insRef := state.InsuranceReference()
		s.callback("RESCINDED", insRef, state.GlobalID(), map[string]any{"refund_amount": "500"})

		err := s.service.HandleEvent(s.ctx, models.RescindedEvent{
			Reference: state.Reference, InsuranceReference: insRef,
		})
		s.Require().NoError(err)

		policy, _, err := s.repo.Get(s.ctx, state.Reference)
		s.Require().NoError(err)
		s.Require().NotNil(policy.RetentionRewardDocument())
	})

	s.Run("status updates have no reaction", func() {
		created := s.create()
		ledgerCalls := s.ledger.createAccrueCalls
		pdfCalls := s.carrier.pdfCalls

		err := s.service.HandleEvent(s.ctx, models.StatusUpdatedEvent{Reference: created.Reference})
		s.Require().NoError(err)
		s.Equal(ledgerCalls, s.ledger.createAccrueCalls)
		s.Equal(pdfCalls, s.carrier.pdfCalls)
	})
}

// TestEventChoreography replays every published event back into HandleEvent,
// the way the broker consumer does, and checks the happy path settles with a
// confirmed reward and a stored document.
func (s *ServiceSuite) TestEventChoreography() {
	created := s.create()
	submitted := s.submit(created.Reference)
	insRef := submitted.InsuranceReference()
	s.callback("PAYED", insRef, "", nil)
	s.callback("COMPLETED_IN_INSURANCE", insRef, "GID-9", nil)

	// Drain the outbox until the reactions stop producing new events.
	for i := 0; i < 10; i++ {
		events := s.publisher.events
		s.publisher.events = nil
		if len(events) == 0 {
			break
		}
		for _, event := range events {
			s.Require().NoError(s.service.HandleEvent(s.ctx, event))
		}
	}

	policy, _, err := s.repo.Get(s.ctx, created.Reference)
	s.Require().NoError(err)
	state := policy.State()
	s.Equal(models.StatusCompleted, state.Status)
	s.True(state.Downloaded)
	doc := policy.AccrueRewardDocument()
	s.Require().NotNil(doc)
	s.True(doc.IsConfirmed())
	s.NotEmpty(s.objects.uploads[created.Reference])
}
