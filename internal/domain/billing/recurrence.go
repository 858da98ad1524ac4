// Package billing computes subscription billing cycles.
//
// Every function here is pure: dates come in as parameters, nothing reads the
// system clock, and identical inputs always give identical outputs. Only the
// calendar date (year, month, day) of a time.Time is used, read in its own
// location; results are midnight UTC on the computed date.
package billing

import "time"

// Result is the outcome of a reactivation: the next expiry and the anchor it
// was computed from.
type Result struct {
	NextExpiration time.Time
	Anchor         int
}

// ComputeNextExpiration returns the expiry one cadence period after from.
//
// The target month is month(from) + cadence months. The result is the anchor
// day of that month, or its last day when the month is shorter than the
// anchor. The next call recomputes from the clamped date with the same anchor,
// so an anchor of 31 goes Mar 31 -> Apr 30 -> May 31.
//
// PRE: anchor in [1,31], cadence valid, from non-zero
// POST: Result is strictly after from, lies in the target month, and its day
// is min(anchor, days in target month)
func ComputeNextExpiration(anchor int, cadence Cadence, from time.Time) (time.Time, error) {
	if err := ValidateAnchor(anchor); err != nil {
		return time.Time{}, err
	}
	if !cadence.Valid() {
		return time.Time{}, ErrInvalidCadence
	}
	if from.IsZero() {
		return time.Time{}, ErrZeroDate
	}

	target := AddMonthsClamped(from, cadence.Months())
	return withDayClamped(target, anchor), nil
}

// ExtendActive renews an active or in-grace subscription from its current
// expiry. The processing date never enters the computation, so a renewal job
// that runs early or late cannot shift the member's billing date.
// PRE: anchor in [1,31], cadence valid, currentExpiry non-zero
// POST: Same as ComputeNextExpiration(anchor, cadence, currentExpiry)
func ExtendActive(anchor int, currentExpiry time.Time, cadence Cadence) (time.Time, error) {
	return ComputeNextExpiration(anchor, cadence, currentExpiry)
}

// Reactivate starts a new billing relationship from a payment date. The old
// anchor is discarded; the new anchor is the payment's day-of-month, which by
// definition exists in the payment month.
// PRE: cadence valid, paymentDate non-zero
// POST: Result.Anchor == paymentDate.Day()
func Reactivate(paymentDate time.Time, cadence Cadence) (Result, error) {
	if paymentDate.IsZero() {
		return Result{}, ErrZeroDate
	}
	anchor := paymentDate.Day()
	next, err := ComputeNextExpiration(anchor, cadence, paymentDate)
	if err != nil {
		return Result{}, err
	}
	return Result{NextExpiration: next, Anchor: anchor}, nil
}

// Schedule returns the next n expirations, each computed from the previous one.
// PRE: n > 0
// POST: len(result) == n, strictly increasing
func Schedule(anchor int, cadence Cadence, from time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	out := make([]time.Time, 0, n)
	cur := from
	for i := 0; i < n; i++ {
		next, err := ComputeNextExpiration(anchor, cadence, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// Clamped reports whether expiry fell short of anchor because its month is
// too short.
func Clamped(anchor int, expiry time.Time) bool {
	return expiry.Day() < anchor
}
