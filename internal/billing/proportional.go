package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// DefaultDeviceFee replaces a missing or non-positive configured fee.
	DefaultDeviceFee = decimal.RequireFromString("50.00")
	// MinimumCharge is the lowest proportional value ever charged.
	MinimumCharge = decimal.RequireFromString("1.00")
	// FixedSurcharge is added on top of every license invoice.
	FixedSurcharge = decimal.RequireFromString("3.99")
)

// cycleDays is the nominal length of a billing month.
const cycleDays = 30

// ProportionalFee returns the amount to charge for the part of the billing cycle left until the
// owner's next anchor day. anchorDay 0 means the owner has no anchor day.
func ProportionalFee(baseFee decimal.Decimal, anchorDay int, now time.Time) decimal.Decimal {
	if !baseFee.IsPositive() {
		baseFee = DefaultDeviceFee
	}
	if anchorDay < 1 || anchorDay > 31 {
		return baseFee
	}

	days := DaysUntilCharge(anchorDay, now)
	fee := baseFee.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(cycleDays)).Round(2)
	if fee.LessThan(MinimumCharge) {
		return MinimumCharge
	}
	return fee
}

// DaysUntilCharge counts the days from now until the next anchor day. When the anchor day is
// today or already passed this month, the anchor in the next calendar month is used.
func DaysUntilCharge(anchorDay int, now time.Time) int {
	if anchorDay > now.Day() {
		return anchorDay - now.Day()
	}

	next := nextAnchor(anchorDay, now)
	return int(math.Ceil(next.Sub(now).Hours() / 24))
}

// nextAnchor is midnight of anchorDay in the month after now's, clamped to that month's last day.
func nextAnchor(anchorDay int, now time.Time) time.Time {
	year, month, _ := now.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysIn(year, month); anchorDay > last {
		anchorDay = last
	}
	return time.Date(year, month, anchorDay, 0, 0, 0, 0, now.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Quote is the breakdown of a license invoice amount, in cents.
type Quote struct {
	ProportionalCents int64 `json:"proportionalValue"`
	SurchargeCents    int64 `json:"surcharge"`
	TotalCents        int64 `json:"total"`
	DaysUntilCharge   int   `json:"daysUntilCharge,omitempty"`
}

// NewQuote computes the proportional value for a monthly fee and anchor day and adds the surcharge.
func NewQuote(baseFeeCents int64, anchorDay int, now time.Time) Quote {
	proportional := ProportionalFee(FromCents(baseFeeCents), anchorDay, now)
	q := quoteFor(ToCents(proportional))
	if anchorDay >= 1 && anchorDay <= 31 {
		q.DaysUntilCharge = DaysUntilCharge(anchorDay, now)
	}
	return q
}

func quoteFor(proportionalCents int64) Quote {
	surcharge := ToCents(FixedSurcharge)
	return Quote{
		ProportionalCents: proportionalCents,
		SurchargeCents:    surcharge,
		TotalCents:        proportionalCents + surcharge,
	}
}
