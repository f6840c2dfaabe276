// Package discount computes capped, itemized booking discounts.
//
// Amounts are handled in cents and percentages in hundredths of a percent
// (basis points) so the final charge is exact to the cent.
package discount

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Category identifies one discount kind an entity can offer.
type Category string

const (
	Seniors    Category = "seniors"
	Students   Category = "students"
	Families   Category = "families"
	Disability Category = "disability"
	EarlyBird  Category = "earlyBird"
)

// Categories lists every category in application order.
var Categories = []Category{Seniors, Students, Families, Disability, EarlyBird}

var labels = map[Category]string{
	Seniors:    "Seniors discount",
	Students:   "Students discount",
	Families:   "Families discount",
	Disability: "Disability discount",
	EarlyBird:  "Early-bird discount",
}

var (
	ErrInvalidBasePrice   = errors.New("base price must be positive")
	ErrNegativePercentage = errors.New("discount percentage cannot be negative")
)

const fullBasisPoints = 10000

// Percentages holds one percentage per category.
type Percentages struct {
	Seniors    float64
	Students   float64
	Families   float64
	Disability float64
	EarlyBird  float64
}

// Get returns the percentage for c.
func (p Percentages) Get(c Category) float64 {
	switch c {
	case Seniors:
		return p.Seniors
	case Students:
		return p.Students
	case Families:
		return p.Families
	case Disability:
		return p.Disability
	case EarlyBird:
		return p.EarlyBird
	}
	return 0
}

// CappedBy returns, per category, the smaller of p and the configured ceiling.
// Negative values on either side count as zero.
func (p Percentages) CappedBy(ceiling Percentages) Percentages {
	capped := func(requested, limit float64) float64 {
		return math.Min(math.Max(requested, 0), math.Max(limit, 0))
	}
	return Percentages{
		Seniors:    capped(p.Seniors, ceiling.Seniors),
		Students:   capped(p.Students, ceiling.Students),
		Families:   capped(p.Families, ceiling.Families),
		Disability: capped(p.Disability, ceiling.Disability),
		EarlyBird:  capped(p.EarlyBird, ceiling.EarlyBird),
	}
}

// Result is the outcome of a calculation.
type Result struct {
	OriginalCents    int64
	DiscountCents    int64
	FinalCents       int64
	TotalPercentage  float64
	AppliedDiscounts []string
	Breakdown        map[Category]float64
}

// BreakdownByName returns the breakdown keyed by plain strings, for JSON and metadata.
func (r Result) BreakdownByName() map[string]float64 {
	out := make(map[string]float64, len(r.Breakdown))
	for c, pct := range r.Breakdown {
		out[string(c)] = pct
	}
	return out
}

// Engine calculates discounts against an injectable clock.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine. A nil clock means time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Calculate applies the percentages to baseCents. The early-bird percentage only
// counts when deadline is nil or the current time is not after it.
func (e *Engine) Calculate(baseCents int64, p Percentages, earlyBirdDeadline *time.Time) (Result, error) {
	if baseCents <= 0 {
		return Result{}, ErrInvalidBasePrice
	}

	earlyBirdOpen := earlyBirdDeadline == nil || !e.now().After(*earlyBirdDeadline)

	res := Result{
		OriginalCents:    baseCents,
		AppliedDiscounts: []string{},
		Breakdown:        map[Category]float64{},
	}

	var totalBP int64
	for _, c := range Categories {
		pct := p.Get(c)
		if pct < 0 {
			return Result{}, fmt.Errorf("%w: %s", ErrNegativePercentage, c)
		}
		if pct == 0 {
			continue
		}
		if c == EarlyBird && !earlyBirdOpen {
			continue
		}
		totalBP += toBasisPoints(pct)
		res.Breakdown[c] = pct
		res.AppliedDiscounts = append(res.AppliedDiscounts, fmt.Sprintf("%s: %s%%", labels[c], formatPercent(pct)))
	}

	if totalBP > fullBasisPoints {
		totalBP = fullBasisPoints
	}

	res.TotalPercentage = float64(totalBP) / 100
	res.DiscountCents = (baseCents*totalBP + fullBasisPoints/2) / fullBasisPoints
	res.FinalCents = max(baseCents-res.DiscountCents, 0)
	return res, nil
}

func toBasisPoints(pct float64) int64 {
	return int64(math.Round(pct * 100))
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64)
}

// ToCents converts a currency amount to cents, rounding half away from zero.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts cents to a currency amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
