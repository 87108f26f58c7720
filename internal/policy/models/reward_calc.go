package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	dErrors "polis/pkg/domain-errors"
)

// retentionCalc computes the clawback amount withheld from a previously paid
// distribution reward when a policy is rescinded, reissued or closed by
// operator error. Selected per (product, carrier) with a per-product default.
type retentionCalc interface {
	operatorErrorReward(state *PolicyState, operationDate time.Time) decimal.Decimal
	rescindedReward(state *PolicyState, operationDate time.Time) decimal.Decimal
	reissuedReward(state *PolicyState, operationDate time.Time) decimal.Decimal
}

var zeroReward = decimal.RequireFromString("0.00")

// baseOsgpoCalc is the default for the OSGPO family: operator error claws back
// the full reward, rescission and reissue claw back nothing.
type baseOsgpoCalc struct{}

func (baseOsgpoCalc) operatorErrorReward(state *PolicyState, _ time.Time) decimal.Decimal {
	return state.Reward
}

func (baseOsgpoCalc) rescindedReward(*PolicyState, time.Time) decimal.Decimal {
	return zeroReward
}

func (baseOsgpoCalc) reissuedReward(*PolicyState, time.Time) decimal.Decimal {
	return zeroReward
}

// eurasiaCalc overrides the OSGPO default for the Eurasia carrier: rescission
// claws back proportionally to the refunded premium, reissue claws back the
// full reward inside the first 90 days when the reissue was caused by an
// inexperienced driver or a region change.
type eurasiaCalc struct{}

const eurasiaReissueWindowDays = 91

func (eurasiaCalc) operatorErrorReward(state *PolicyState, _ time.Time) decimal.Decimal {
	return state.Reward
}

func (eurasiaCalc) rescindedReward(state *PolicyState, _ time.Time) decimal.Decimal {
	if state.Reward.IsZero() {
		return zeroReward
	}
	if state.Cost == 0 {
		return zeroReward
	}
	refund := attributeDecimal(state.Attributes, "refund_amount")
	cost := decimal.NewFromInt(int64(state.Cost))
	return state.Reward.Mul(refund.Div(cost)).Round(2)
}

func (eurasiaCalc) reissuedReward(state *PolicyState, operationDate time.Time) decimal.Decimal {
	if state.Reward.IsZero() {
		return zeroReward
	}
	daysFromCreation := int(Date(operationDate).Sub(Date(state.CreatedTime)).Hours() / 24)
	flagged := attributeBool(state.Attributes, "with_inexperienced") || attributeBool(state.Attributes, "region_changed")
	if daysFromCreation < eurasiaReissueWindowDays && flagged {
		return state.Reward
	}
	return zeroReward
}

const defaultCalcKey = Carrier("DEFAULT")

var retentionCalcRegistry = map[Product]map[Carrier]retentionCalc{
	ProductOsgpoVts: {
		defaultCalcKey: baseOsgpoCalc{},
		CarrierEurasia: eurasiaCalc{},
	},
}

func calcFor(state *PolicyState) (retentionCalc, error) {
	byCarrier, ok := retentionCalcRegistry[state.Product]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"no retention reward calculator registered for product %q", state.Product)
	}
	if calc, ok := byCarrier[state.Carrier]; ok {
		return calc, nil
	}
	return byCarrier[defaultCalcKey], nil
}

// OperatorErrorRetentionReward computes the clawback for an operator error.
func OperatorErrorRetentionReward(state *PolicyState, operationDate time.Time) (decimal.Decimal, error) {
	calc, err := calcFor(state)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return calc.operatorErrorReward(state, operationDate), nil
}

// RescindedRetentionReward computes the clawback for a rescission.
func RescindedRetentionReward(state *PolicyState, operationDate time.Time) (decimal.Decimal, error) {
	calc, err := calcFor(state)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return calc.rescindedReward(state, operationDate), nil
}

// ReissuedRetentionReward computes the clawback for a reissue.
func ReissuedRetentionReward(state *PolicyState, operationDate time.Time) (decimal.Decimal, error) {
	calc, err := calcFor(state)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return calc.reissuedReward(state, operationDate), nil
}

// attributeDecimal reads a numeric attribute that may arrive as a string,
// float or int from callback payloads or offer JSON.
func attributeDecimal(attrs map[string]any, key string) decimal.Decimal {
	switch v := attrs[key].(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case decimal.Decimal:
		return v
	case fmt.Stringer:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	}
	return decimal.Decimal{}
}

func attributeBool(attrs map[string]any, key string) bool {
	switch v := attrs[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}
