package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"polis/internal/policy/metrics"
	"polis/internal/policy/models"
	"polis/internal/policy/requireddata"
	dErrors "polis/pkg/domain-errors"
	"polis/pkg/platform/sentinel"
	"polis/pkg/requestcontext"
)

// saveAttempts bounds the load-mutate-save retry on optimistic concurrency
// conflicts.
const saveAttempts = 3

// Service orchestrates the policy lifecycle: adapters in, aggregate
// transitions, repository out, events to the broker.
type Service struct {
	repo         Repository
	locker       Locker
	leads        LeadProvider
	offers       OfferProvider
	carrier      CarrierAdapter
	ledger       RewardLedger
	objects      ObjectStore
	publisher    EventPublisher
	requiredData RequiredDataChecker
	callbacks    CallbackMapper

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(
	repo Repository,
	locker Locker,
	leads LeadProvider,
	offers OfferProvider,
	carrier CarrierAdapter,
	ledger RewardLedger,
	objects ObjectStore,
	publisher EventPublisher,
	requiredData RequiredDataChecker,
	callbacks CallbackMapper,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repo,
		locker:       locker,
		leads:        leads,
		offers:       offers,
		carrier:      carrier,
		ledger:       ledger,
		objects:      objects,
		publisher:    publisher,
		requiredData: requiredData,
		callbacks:    callbacks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePolicyInput identifies the lead and the chosen carrier.
type CreatePolicyInput struct {
	LeadReference uuid.UUID
	Carrier       string
}

// UpdatePolicyInput carries the draft fields to change; nil fields keep their
// current values.
type UpdatePolicyInput struct {
	BeginDate   *time.Time
	Email       *string
	PaymentType *models.PaymentType
}

// CreatePolicy fetches the lead and its carrier offer in parallel, builds the
// aggregate and persists it.
func (s *Service) CreatePolicy(ctx context.Context, in CreatePolicyInput) (*models.PolicyState, error) {
	carrier, err := models.ParseCarrier(in.Carrier)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "unknown carrier")
	}

	var (
		lead  models.Lead
		offer models.Offer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lead, err = s.leads.GetLead(gctx, in.LeadReference)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.NewWithReason(dErrors.CodeNotFound, dErrors.ReasonLeadNotFound, "lead not found")
		}
		return err
	})
	g.Go(func() error {
		var err error
		offer, err = s.leads.GetOffer(gctx, carrier, in.LeadReference)
		if err != nil {
			return dErrors.WrapWithReason(err, dErrors.CodeUnavailable, dErrors.ReasonLeadGetOffer,
				"failed to get carrier offer for lead")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	policy, err := models.CreatePolicy(lead, offer, carrier, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist policy")
	}
	s.publishEvents(ctx, policy)
	if s.metrics != nil {
		s.metrics.PolicyCreated.Inc()
	}
	s.logInfo(ctx, "policy created",
		"policy_reference", policy.Reference(), "lead_reference", in.LeadReference, "carrier", carrier)
	return policy.State(), nil
}

// UpdatePolicy edits the draft configuration with a bounded retry on
// concurrent updates.
func (s *Service) UpdatePolicy(ctx context.Context, reference uuid.UUID, in UpdatePolicyInput) (*models.PolicyState, error) {
	var state *models.PolicyState
	err := s.retrySave(ctx, func(ctx context.Context) error {
		policy, version, err := s.load(ctx, reference)
		if err != nil {
			return err
		}
		if err := policy.UpdatePolicy(in.BeginDate, in.Email, in.PaymentType, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, policy, version); err != nil {
			return err
		}
		s.publishEvents(ctx, policy)
		state = policy.State()
		return nil
	})
	return state, err
}

// SubmitPolicy pushes the policy to the carrier. Concurrent submissions are
// serialized with a distributed lock; an already submitted policy is returned
// as-is.
func (s *Service) SubmitPolicy(ctx context.Context, reference uuid.UUID) (*models.PolicyState, error) {
	var state *models.PolicyState
	err := s.retrySave(ctx, func(ctx context.Context) error {
		return s.withLock(ctx, fmt.Sprintf("policy-save:%s", reference), func(ctx context.Context) error {
			policy, version, err := s.load(ctx, reference)
			if err != nil {
				return err
			}
			snapshot := policy.State()
			if snapshot.InsuranceReference() != "" {
				state = snapshot
				return nil
			}
			if err := s.requiredData.EnsureVerified(ctx, snapshot); err != nil {
				return err
			}

			start := time.Now()
			info, err := s.carrier.SavePolicy(ctx, snapshot)
			if s.metrics != nil {
				s.metrics.ObserveCarrierRequest(start)
			}
			if err != nil {
				return dErrors.WrapWithReason(err, dErrors.CodeValidation, dErrors.ReasonSavePolicy,
					"carrier rejected the policy")
			}

			if err := policy.SetInsuranceInfo(info, requestcontext.Now(ctx)); err != nil {
				return err
			}
			if err := s.save(ctx, policy, version); err != nil {
				return err
			}
			s.publishEvents(ctx, policy)
			if s.metrics != nil {
				s.metrics.PolicySubmitted.Inc()
			}
			s.logInfo(ctx, "policy submitted",
				"policy_reference", reference, "insurance_reference", info.InsuranceReference)
			state = policy.State()
			return nil
		})
	})
	return state, err
}

// UpdateStatusFromCallback resolves the policy by the carrier correlation id
// and applies the translated status.
func (s *Service) UpdateStatusFromCallback(ctx context.Context, in CallbackInput) (*models.PolicyState, error) {
	info, err := s.callbacks.StatusInfo(in)
	if err != nil {
		return nil, err
	}
	reference, err := s.repo.GetReferenceByInsuranceReference(ctx, in.InsuranceReference)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.NewWithReason(dErrors.CodeNotFound, dErrors.ReasonPolicyNotFound,
			"no policy for carrier reference")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve policy by carrier reference")
	}

	var state *models.PolicyState
	err = s.retrySave(ctx, func(ctx context.Context) error {
		policy, version, err := s.load(ctx, reference)
		if err != nil {
			return err
		}
		if err := policy.UpdateStatus(info, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, policy, version); err != nil {
			return err
		}
		s.publishEvents(ctx, policy)
		state = policy.State()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CallbackApplied.WithLabelValues(string(info.StatusType)).Inc()
	}
	s.logInfo(ctx, "policy status callback applied",
		"policy_reference", reference, "status", info.StatusType)
	return state, nil
}

// UpdateOffer refreshes the carrier offer and completes the policy. Runs as a
// reaction to the completed-in-insurance event.
func (s *Service) UpdateOffer(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		policy, version, err := s.load(ctx, reference)
		if err != nil {
			return err
		}
		offer, err := s.offers.GetOffer(ctx, policy.State())
		if err != nil {
			return dErrors.WrapWithReason(err, dErrors.CodeUnavailable, dErrors.ReasonLeadGetOffer,
				"failed to refresh carrier offer")
		}
		if err := policy.UpdateOffer(offer, insuranceReference, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, policy, version); err != nil {
			return err
		}
		s.publishEvents(ctx, policy)
		return nil
	})
}

// RequiredData reports what is still needed before submission.
func (s *Service) RequiredData(ctx context.Context, reference uuid.UUID) (requireddata.Report, error) {
	policy, _, err := s.load(ctx, reference)
	if err != nil {
		return requireddata.Report{}, err
	}
	return s.requiredData.Check(ctx, policy.State())
}

// GetPolicy returns the current aggregate snapshot.
func (s *Service) GetPolicy(ctx context.Context, reference uuid.UUID) (*models.PolicyState, error) {
	policy, _, err := s.load(ctx, reference)
	if err != nil {
		return nil, err
	}
	return policy.State(), nil
}

// DownloadPDF fetches the issued document from the carrier and stores it.
// Idempotent once the policy is marked downloaded.
func (s *Service) DownloadPDF(ctx context.Context, reference uuid.UUID) (bool, error) {
	var downloaded bool
	err := s.retrySave(ctx, func(ctx context.Context) error {
		return s.withLock(ctx, fmt.Sprintf("policy-download:%s", reference), func(ctx context.Context) error {
			policy, version, err := s.load(ctx, reference)
			if err != nil {
				return err
			}
			snapshot := policy.State()
			if snapshot.Downloaded {
				downloaded = true
				return nil
			}
			data, err := s.carrier.GetPolicyPDF(ctx, snapshot.Carrier, snapshot.InsuranceReference())
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to fetch policy document")
			}
			if err := s.objects.Upload(ctx, reference, data); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store policy document")
			}
			policy.SetPDFDownloaded()
			if err := s.save(ctx, policy, version); err != nil {
				return err
			}
			s.publishEvents(ctx, policy)
			if s.metrics != nil {
				s.metrics.PDFDownloads.Inc()
			}
			downloaded = true
			return nil
		})
	})
	return downloaded, err
}

// GetPDFURL returns a link to the stored document. A completed policy whose
// document was not fetched yet gets it downloaded first.
func (s *Service) GetPDFURL(ctx context.Context, reference uuid.UUID) (string, error) {
	policy, _, err := s.load(ctx, reference)
	if err != nil {
		return "", err
	}
	snapshot := policy.State()
	if snapshot.Downloaded {
		return s.objects.URL(ctx, reference)
	}
	if snapshot.Status == models.StatusCompleted {
		if _, err := s.DownloadPDF(ctx, reference); err != nil {
			return "", err
		}
		return s.objects.URL(ctx, reference)
	}
	return "", dErrors.New(dErrors.CodeNotFound, "policy document is not available yet")
}

// CreateAccrueReward opens the distribution reward in the accounting system
// and mirrors it on the aggregate.
func (s *Service) CreateAccrueReward(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		return s.withLock(ctx, fmt.Sprintf("policy-create-accrue-reward:%s", reference), func(ctx context.Context) error {
			policy, version, err := s.load(ctx, reference)
			if err != nil {
				return err
			}
			if policy.AccrueRewardDocument() != nil {
				return nil
			}
			documentReference, err := s.ledger.CreateAccrueReward(ctx, policy.State())
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create accrue reward document")
			}
			if err := policy.CreateAccrueReward(insuranceReference, documentReference, requestcontext.Now(ctx)); err != nil {
				return err
			}
			if err := s.save(ctx, policy, version); err != nil {
				return err
			}
			s.publishEvents(ctx, policy)
			return nil
		})
	})
}

// ConfirmAccrueReward confirms a created accrue reward document. Silent when
// there is nothing to confirm.
func (s *Service) ConfirmAccrueReward(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		policy, version, err := s.load(ctx, reference)
		if err != nil {
			return err
		}
		doc := policy.AccrueRewardDocument()
		if doc == nil || !doc.IsCreated() {
			return nil
		}
		if err := s.ledger.ConfirmAccrueReward(ctx, reference, policy.State().Carrier); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to confirm accrue reward document")
		}
		if err := policy.ConfirmAccrueReward(insuranceReference, requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, policy, version)
	})
}

// CancelAccrueReward cancels a confirmed accrue reward document. Silent when
// there is nothing to cancel.
func (s *Service) CancelAccrueReward(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		return s.withLock(ctx, fmt.Sprintf("policy-cancel-accrue-reward:%s", reference), func(ctx context.Context) error {
			policy, version, err := s.load(ctx, reference)
			if err != nil {
				return err
			}
			doc := policy.AccrueRewardDocument()
			if doc == nil || !doc.IsConfirmed() {
				return nil
			}
			if err := s.ledger.CancelReward(ctx, reference, policy.State().Carrier); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to cancel reward document")
			}
			if err := policy.CancelAccrueReward(insuranceReference, requestcontext.Now(ctx)); err != nil {
				return err
			}
			return s.save(ctx, policy, version)
		})
	})
}

// CreateRetentionReward opens the clawback document in the accounting system
// and mirrors it on the aggregate.
func (s *Service) CreateRetentionReward(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		return s.withLock(ctx, fmt.Sprintf("policy-create-retention-reward:%s", reference), func(ctx context.Context) error {
			policy, version, err := s.load(ctx, reference)
			if err != nil {
				return err
			}
			if policy.RetentionRewardDocument() != nil {
				return nil
			}
			documentReference, err := s.ledger.CreateRetentionReward(ctx, policy.State())
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create retention reward document")
			}
			if err := policy.CreateRetentionReward(insuranceReference, documentReference, requestcontext.Now(ctx)); err != nil {
				return err
			}
			if err := s.save(ctx, policy, version); err != nil {
				return err
			}
			s.publishEvents(ctx, policy)
			return nil
		})
	})
}

// ConfirmRetentionReward confirms a created retention reward document. Silent
// when there is nothing to confirm.
func (s *Service) ConfirmRetentionReward(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		policy, version, err := s.load(ctx, reference)
		if err != nil {
			return err
		}
		doc := policy.RetentionRewardDocument()
		if doc == nil || !doc.IsCreated() {
			return nil
		}
		if err := s.ledger.ConfirmRetentionReward(ctx, reference, policy.State().Carrier); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to confirm retention reward document")
		}
		if err := policy.ConfirmRetentionReward(insuranceReference, requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, policy, version)
	})
}

// CancelRetentionReward cancels a confirmed retention reward document. Silent
// when there is nothing to cancel.
func (s *Service) CancelRetentionReward(ctx context.Context, reference uuid.UUID, insuranceReference string) error {
	return s.retrySave(ctx, func(ctx context.Context) error {
		return s.withLock(ctx, fmt.Sprintf("policy-cancel-retention-reward:%s", reference), func(ctx context.Context) error {
			policy, version, err := s.load(ctx, reference)
			if err != nil {
				return err
			}
			doc := policy.RetentionRewardDocument()
			if doc == nil || !doc.IsConfirmed() {
				return nil
			}
			if err := s.ledger.CancelReward(ctx, reference, policy.State().Carrier); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to cancel reward document")
			}
			if err := policy.CancelRetentionReward(insuranceReference, requestcontext.Now(ctx)); err != nil {
				return err
			}
			return s.save(ctx, policy, version)
		})
	})
}

func (s *Service) load(ctx context.Context, reference uuid.UUID) (*models.Policy, int64, error) {
	policy, version, err := s.repo.Get(ctx, reference)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, 0, dErrors.NewWithReason(dErrors.CodeNotFound, dErrors.ReasonPolicyNotFound,
			"policy not found")
	}
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return policy, version, nil
}

// save writes the aggregate back; a version conflict passes through untouched
// so retrySave can see it.
func (s *Service) save(ctx context.Context, policy *models.Policy, version int64) error {
	err := s.repo.Save(ctx, policy, version)
	if err == nil || errors.Is(err, sentinel.ErrVersionConflict) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist policy")
}

// retrySave reruns the whole load-mutate-save cycle on optimistic concurrency
// conflicts.
func (s *Service) retrySave(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, sentinel.ErrVersionConflict) {
			return err
		}
		if s.metrics != nil {
			s.metrics.SaveConflicts.Inc()
		}
	}
	return dErrors.Wrap(err, dErrors.CodeConflict, "policy was updated concurrently")
}

func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire policy lock")
	}
	defer func() {
		if err := release(ctx); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to release policy lock", "key", key, "error", err)
		}
	}()
	return fn(ctx)
}

// publishEvents drains the aggregate outbox to the broker. Delivery failures
// are logged, not propagated: the state change is already persisted.
func (s *Service) publishEvents(ctx context.Context, policy *models.Policy) {
	for _, event := range policy.Events() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "failed to publish domain event",
					"event", event.EventName(), "policy_reference", event.PolicyReference(), "error", err)
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.EventsPublished.WithLabelValues(event.EventName()).Inc()
		}
	}
	policy.EmptyEvents()
}

func (s *Service) logInfo(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}
