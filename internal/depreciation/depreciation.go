// Package depreciation computes the value decay of an asset.
package depreciation

import (
	"math"
	"time"

	"meeting-resource-backend/internal/model"
)

const defaultDecliningFactor = 2.0

// Input holds the settings of one asset.
type Input struct {
	Value           float64
	Method          model.DepreciationMethod
	Unit            model.PeriodUnit
	Periods         int
	DecliningFactor float64
	Start           *time.Time
}

// Result holds the derived figures. PeriodAmount is the nominal per-period
// amount; for syd and declining it is the first-period figure.
type Result struct {
	ElapsedPeriods int     `json:"elapsedPeriods"`
	PeriodAmount   float64 `json:"periodAmount"`
	Accumulated    float64 `json:"accumulated"`
	BookValue      float64 `json:"bookValue"`
}

// FromAsset builds an Input from an asset, resolving the start date.
func FromAsset(a *model.Asset) Input {
	start := a.DepreciationStartDate
	if start == nil {
		start = a.InServiceDate
	}
	if start == nil {
		start = a.PurchaseDate
	}
	return Input{
		Value:           a.Value,
		Method:          a.DepreciationMethod,
		Unit:            a.PeriodUnit,
		Periods:         a.PeriodCount,
		DecliningFactor: a.DecliningFactor,
		Start:           start,
	}
}

// Apply computes the figures at evalDate and writes them onto the asset.
func Apply(a *model.Asset, evalDate time.Time) Result {
	r := Compute(FromAsset(a), evalDate)
	a.ElapsedPeriods = r.ElapsedPeriods
	a.PeriodDepreciation = r.PeriodAmount
	a.AccumulatedDepreciation = r.Accumulated
	a.BookValue = r.BookValue
	at := evalDate.UTC()
	a.DepreciationEvaluatedAt = &at
	return r
}

// Compute evaluates in at evalDate.
func Compute(in Input, evalDate time.Time) Result {
	res := Result{BookValue: in.Value}
	n := in.Periods
	if in.Method == model.DepreciationNone || in.Method == "" || in.Value <= 0 || n <= 0 || in.Start == nil {
		return res
	}

	elapsed := ElapsedPeriods(*in.Start, evalDate, in.Unit)
	if elapsed > n {
		elapsed = n
	}
	if elapsed <= 0 {
		return res
	}
	res.ElapsedPeriods = elapsed

	value := in.Value
	switch in.Method {
	case model.DepreciationLinear:
		per := value / float64(n)
		res.PeriodAmount = per
		res.Accumulated = math.Min(per*float64(elapsed), value)
		res.BookValue = math.Max(value-res.Accumulated, 0)

	case model.DepreciationSYD:
		denom := float64(n*(n+1)) / 2
		acc := 0.0
		for i := 1; i <= elapsed; i++ {
			acc += value * float64(n-i+1) / denom
		}
		res.PeriodAmount = value * float64(n) / denom
		res.Accumulated = math.Min(acc, value)
		res.BookValue = math.Max(value-res.Accumulated, 0)

	case model.DepreciationDeclining:
		factor := in.DecliningFactor
		if factor == 0 {
			factor = defaultDecliningFactor
		}
		rate := math.Min(math.Max(factor/float64(n), 0), 1)
		book, acc := value, 0.0
		for i := 0; i < elapsed; i++ {
			dep := math.Min(book*rate, book)
			acc += dep
			book -= dep
			if book <= 0 {
				book = 0
				break
			}
		}
		res.PeriodAmount = value * rate
		res.Accumulated = math.Min(acc, value)
		res.BookValue = math.Max(book, 0)

	default:
		res.ElapsedPeriods = 0
	}
	return res
}

// ElapsedPeriods counts whole months or years from start to eval, compared by
// calendar date. It is never negative.
func ElapsedPeriods(start, eval time.Time, unit model.PeriodUnit) int {
	sy, sm, sd := start.Date()
	ey, em, ed := eval.In(start.Location()).Date()

	months := (ey-sy)*12 + int(em-sm)
	if ed < sd {
		months--
	}
	if months < 0 {
		return 0
	}
	if unit == model.PeriodMonth {
		return months
	}
	return months / 12
}
