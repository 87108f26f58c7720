// Package requireddata answers what a policy still needs before it can be
// submitted to a carrier. Today that means phone verification through the
// state identity gateway for the insurer and every driver; the checks are
// strategies selected per product and carrier so other carriers can opt out.
package requireddata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"polis/internal/policy/models"
	dErrors "polis/pkg/domain-errors"
)

// Person is an identity record resolved by IIN.
type Person struct {
	Reference     uuid.UUID
	IIN           string
	PhoneVerified bool
}

// PersonProvider resolves identity records by IIN.
type PersonProvider interface {
	GetPersons(ctx context.Context, iins []string) ([]Person, error)
}

// PhoneVerifier checks whether the phone registered for an IIN is verified
// with the given carrier.
type PhoneVerifier interface {
	IsVerified(ctx context.Context, iin string, carrier models.Carrier) (bool, error)
}

// ClientProvider resolves a client record to its IIN.
type ClientProvider interface {
	ClientIIN(ctx context.Context, reference uuid.UUID) (string, error)
}

// RequiredPhone describes a missing phone verification and the channels the
// client may use to complete it.
type RequiredPhone struct {
	Required bool `json:"required"`
	AllowBMG bool `json:"allow_bmg"`
	AllowOTP bool `json:"allow_otp"`
}

// RequiredDriver names a driver that still needs verification.
type RequiredDriver struct {
	Reference uuid.UUID     `json:"reference"`
	Phone     RequiredPhone `json:"phone"`
}

// RequiredInsurer marks the policy holder as needing verification.
type RequiredInsurer struct {
	Phone RequiredPhone `json:"phone"`
}

// Report is the aggregated answer: empty slices and a nil insurer mean the
// policy is ready for submission.
type Report struct {
	Drivers []RequiredDriver `json:"drivers"`
	Insurer *RequiredInsurer `json:"insurer,omitempty"`
}

// Verified reports whether nothing is outstanding.
func (r Report) Verified() bool {
	return len(r.Drivers) == 0 && r.Insurer == nil
}

type strategy interface {
	required(state *models.PolicyState) bool
	check(ctx context.Context, state *models.PolicyState) (Report, error)
}

// Facade selects and runs the verification strategies for a policy.
type Facade struct {
	persons PersonProvider
	phones  PhoneVerifier
	clients ClientProvider
	logger  *slog.Logger
}

type Option func(f *Facade)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		f.logger = logger
	}
}

// New constructs a Facade.
func New(persons PersonProvider, phones PhoneVerifier, clients ClientProvider, opts ...Option) *Facade {
	f := &Facade{persons: persons, phones: phones, clients: clients}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Check runs the insurer and driver strategies in parallel and merges their
// findings.
func (f *Facade) Check(ctx context.Context, state *models.PolicyState) (Report, error) {
	var driverReport, insurerReport Report

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		driverReport, err = f.runStrategy(gctx, f.driversStrategy(state), state)
		return err
	})
	g.Go(func() error {
		var err error
		insurerReport, err = f.runStrategy(gctx, f.insurerStrategy(state), state)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return Report{Drivers: driverReport.Drivers, Insurer: insurerReport.Insurer}, nil
}

// EnsureVerified fails with a validation error naming the unverified parties
// when anything is outstanding.
func (f *Facade) EnsureVerified(ctx context.Context, state *models.PolicyState) error {
	report, err := f.Check(ctx, state)
	if err != nil {
		return err
	}
	if report.Verified() {
		return nil
	}
	var offending []string
	for _, driver := range report.Drivers {
		offending = append(offending, driver.Reference.String())
	}
	if report.Insurer != nil {
		offending = append(offending, state.Insurer.Title)
	}
	if f.logger != nil {
		f.logger.InfoContext(ctx, "policy verification incomplete",
			"policy_reference", state.Reference, "unverified", offending)
	}
	return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonRequiredData,
		fmt.Sprintf("phone verification required for %v", offending))
}

func (f *Facade) runStrategy(ctx context.Context, s strategy, state *models.PolicyState) (Report, error) {
	if !s.required(state) {
		return Report{}, nil
	}
	return s.check(ctx, state)
}

func (f *Facade) driversStrategy(state *models.PolicyState) strategy {
	if state.Product == models.ProductOsgpoVts && state.Carrier == models.CarrierEurasia {
		return eurasiaDriversStrategy{persons: f.persons, phones: f.phones}
	}
	return noopStrategy{}
}

func (f *Facade) insurerStrategy(state *models.PolicyState) strategy {
	if state.Product == models.ProductOsgpoVts && state.Carrier == models.CarrierEurasia {
		return eurasiaInsurerStrategy{persons: f.persons, phones: f.phones, clients: f.clients}
	}
	return noopStrategy{}
}

// noopStrategy is the default for products and carriers without pre-submission
// verification.
type noopStrategy struct{}

func (noopStrategy) required(*models.PolicyState) bool { return false }

func (noopStrategy) check(context.Context, *models.PolicyState) (Report, error) {
	return Report{}, nil
}

// Verification channels offered for the Eurasia OSGPO flow.
const (
	eurasiaAllowBMG = true
	eurasiaAllowOTP = true
)

// eurasiaDriversStrategy flags every driver in the structure whose phone is
// neither verified in the identity record nor confirmed by the carrier.
type eurasiaDriversStrategy struct {
	persons PersonProvider
	phones  PhoneVerifier
}

func (eurasiaDriversStrategy) required(*models.PolicyState) bool { return true }

func (s eurasiaDriversStrategy) check(ctx context.Context, state *models.PolicyState) (Report, error) {
	var iins []string
	for _, item := range state.Structure {
		if item.Type == models.StructureDriver && item.Driver != nil {
			iins = append(iins, item.Driver.IIN)
		}
	}
	persons, err := s.persons.GetPersons(ctx, iins)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, person := range persons {
		outstanding, err := phoneOutstanding(ctx, s.phones, person, state.Carrier)
		if err != nil {
			return Report{}, err
		}
		if outstanding {
			report.Drivers = append(report.Drivers, RequiredDriver{
				Reference: person.Reference,
				Phone:     RequiredPhone{Required: true, AllowBMG: eurasiaAllowBMG, AllowOTP: eurasiaAllowOTP},
			})
		}
	}
	return report, nil
}

// eurasiaInsurerStrategy resolves the policy holder to an IIN and applies the
// same phone check.
type eurasiaInsurerStrategy struct {
	persons PersonProvider
	phones  PhoneVerifier
	clients ClientProvider
}

func (eurasiaInsurerStrategy) required(*models.PolicyState) bool { return true }

func (s eurasiaInsurerStrategy) check(ctx context.Context, state *models.PolicyState) (Report, error) {
	iin, err := s.clients.ClientIIN(ctx, state.Insurer.Reference)
	if err != nil {
		return Report{}, err
	}
	persons, err := s.persons.GetPersons(ctx, []string{iin})
	if err != nil {
		return Report{}, err
	}
	for _, person := range persons {
		outstanding, err := phoneOutstanding(ctx, s.phones, person, state.Carrier)
		if err != nil {
			return Report{}, err
		}
		if outstanding {
			return Report{Insurer: &RequiredInsurer{
				Phone: RequiredPhone{Required: true, AllowBMG: eurasiaAllowBMG, AllowOTP: eurasiaAllowOTP},
			}}, nil
		}
	}
	return Report{}, nil
}

// phoneOutstanding reports whether the person still needs phone verification:
// the identity record says unverified and the carrier confirms it.
func phoneOutstanding(ctx context.Context, phones PhoneVerifier, person Person, carrier models.Carrier) (bool, error) {
	if person.PhoneVerified {
		return false, nil
	}
	verified, err := phones.IsVerified(ctx, person.IIN, carrier)
	if err != nil {
		return false, err
	}
	return !verified, nil
}
