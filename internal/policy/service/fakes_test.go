package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"polis/internal/policy/models"
	"polis/internal/policy/requireddata"
	dErrors "polis/pkg/domain-errors"
	"polis/pkg/platform/sentinel"
)

// Hand-rolled port fakes. They record calls and let each test program the
// next failure; the repository is the real in-memory store wrapped where a
// test needs to inject version conflicts.

type fakeLeads struct {
	lead     models.Lead
	leadErr  error
	offer    models.Offer
	offerErr error
}

func (f *fakeLeads) GetLead(_ context.Context, _ uuid.UUID) (models.Lead, error) {
	return f.lead, f.leadErr
}

func (f *fakeLeads) GetOffer(_ context.Context, _ models.Carrier, _ uuid.UUID) (models.Offer, error) {
	return f.offer, f.offerErr
}

type fakeOffers struct {
	offer models.Offer
	err   error
	calls int
}

func (f *fakeOffers) GetOffer(_ context.Context, _ *models.PolicyState) (models.Offer, error) {
	f.calls++
	return f.offer, f.err
}

type fakeCarrier struct {
	info      models.InsuranceInfo
	saveErr   error
	saveCalls int
	pdf       []byte
	pdfErr    error
	pdfCalls  int
}

func (f *fakeCarrier) SavePolicy(_ context.Context, _ *models.PolicyState) (models.InsuranceInfo, error) {
	f.saveCalls++
	return f.info, f.saveErr
}

func (f *fakeCarrier) GetPolicyPDF(_ context.Context, _ models.Carrier, _ string) ([]byte, error) {
	f.pdfCalls++
	return f.pdf, f.pdfErr
}

type fakeLedger struct {
	accrueReference    uuid.UUID
	retentionReference uuid.UUID
	createErr          error
	confirmErr         error
	cancelErr          error

	createAccrueCalls     int
	confirmAccrueCalls    int
	createRetentionCalls  int
	confirmRetentionCalls int
	cancelCalls           int
}

func (f *fakeLedger) CreateAccrueReward(_ context.Context, _ *models.PolicyState) (uuid.UUID, error) {
	f.createAccrueCalls++
	return f.accrueReference, f.createErr
}

func (f *fakeLedger) ConfirmAccrueReward(_ context.Context, _ uuid.UUID, _ models.Carrier) error {
	f.confirmAccrueCalls++
	return f.confirmErr
}

func (f *fakeLedger) CreateRetentionReward(_ context.Context, _ *models.PolicyState) (uuid.UUID, error) {
	f.createRetentionCalls++
	return f.retentionReference, f.createErr
}

func (f *fakeLedger) ConfirmRetentionReward(_ context.Context, _ uuid.UUID, _ models.Carrier) error {
	f.confirmRetentionCalls++
	return f.confirmErr
}

func (f *fakeLedger) CancelReward(_ context.Context, _ uuid.UUID, _ models.Carrier) error {
	f.cancelCalls++
	return f.cancelErr
}

type fakeObjects struct {
	mu        sync.Mutex
	uploads   map[uuid.UUID][]byte
	uploadErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploads: make(map[uuid.UUID][]byte)}
}

func (f *fakeObjects) Upload(_ context.Context, policyReference uuid.UUID, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[policyReference] = data
	return nil
}

func (f *fakeObjects) URL(_ context.Context, policyReference uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.uploads[policyReference]; !ok {
		return "", sentinel.ErrNotFound
	}
	return "https://storage.local/policies/" + policyReference.String() + ".pdf", nil
}

// fakeLocker records acquisitions and holds one process-wide gate between
// acquire and release, so concurrent reactions in tests run serialized just
// like behind the real distributed lock.
type fakeLocker struct {
	gate     sync.Mutex
	mu       sync.Mutex
	acquired []string
	released []string
	err      error
}

func (f *fakeLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gate.Lock()
	f.mu.Lock()
	f.acquired = append(f.acquired, key)
	f.mu.Unlock()
	return func(context.Context) error {
		f.mu.Lock()
		f.released = append(f.released, key)
		f.mu.Unlock()
		f.gate.Unlock()
		return nil
	}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event models.Event) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, event := range f.events {
		names = append(names, event.EventName())
	}
	return names
}

type fakeRequiredData struct {
	report    requireddata.Report
	checkErr  error
	verifyErr error
}

func (f *fakeRequiredData) Check(_ context.Context, _ *models.PolicyState) (requireddata.Report, error) {
	return f.report, f.checkErr
}

func (f *fakeRequiredData) EnsureVerified(_ context.Context, _ *models.PolicyState) error {
	return f.verifyErr
}

// fakeCallbacks maps raw event types straight onto statuses, the way a
// carrier-specific mapper would.
type fakeCallbacks struct{}

func (fakeCallbacks) StatusInfo(in CallbackInput) (models.StatusInfo, error) {
	status, err := models.ParseStatus(in.EventType)
	if err != nil {
		return models.StatusInfo{}, dErrors.Wrap(err, dErrors.CodeValidation, "unknown callback event type")
	}
	return models.StatusInfo{
		StatusType:         status,
		Timestamp:          in.EventTime,
		InsuranceReference: in.InsuranceReference,
		GlobalID:           in.GlobalID,
		ExtraAttrs:         in.Attributes,
	}, nil
}

// conflictRepo wraps a Repository and fails the first n saves with a version
// conflict.
type conflictRepo struct {
	Repository
	conflicts int
	saves     int
}

func (r *conflictRepo) Save(ctx context.Context, policy *models.Policy, version int64) error {
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return sentinel.ErrVersionConflict
	}
	return r.Repository.Save(ctx, policy, version)
}
