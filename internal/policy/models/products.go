package models

import (
	"time"

	dErrors "polis/pkg/domain-errors"
)

// productRules captures the per-product begin date policy. Both current
// products require a begin date strictly in the future and default to
// tomorrow.
type productRules struct {
	validateBeginDate func(beginDate, today time.Time) error
	defaultBeginDate  func(today time.Time) time.Time
}

func futureBeginDate(beginDate, today time.Time) error {
	if !Date(beginDate).After(Date(today)) {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidBeginDate,
			"policy begin date must be in the future")
	}
	return nil
}

func tomorrow(today time.Time) time.Time {
	return Date(today).AddDate(0, 0, 1)
}

var productRegistry = map[Product]productRules{
	ProductOsgpoVts:   {validateBeginDate: futureBeginDate, defaultBeginDate: tomorrow},
	ProductCascoLimit: {validateBeginDate: futureBeginDate, defaultBeginDate: tomorrow},
}

func rulesFor(product Product) (productRules, error) {
	rules, ok := productRegistry[product]
	if !ok {
		return productRules{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"no begin date rules registered for product %q", product)
	}
	return rules, nil
}

// DefaultBeginDate returns the product's default policy begin date relative
// to today.
func DefaultBeginDate(product Product, today time.Time) (time.Time, error) {
	rules, err := rulesFor(product)
	if err != nil {
		return time.Time{}, err
	}
	return rules.defaultBeginDate(today), nil
}

// ValidateBeginDate checks a begin date against the product's rules.
func ValidateBeginDate(product Product, beginDate, today time.Time) error {
	rules, err := rulesFor(product)
	if err != nil {
		return err
	}
	return rules.validateBeginDate(beginDate, today)
}
