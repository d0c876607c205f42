// This file implements the Strategy Pattern for subscription rollover.
// Each frequency has an advancer that computes the occurrence following the
// current one.

package services

import (
	"fmt"

	"fortuna/internal/core"
)

// OccurrenceAdvancer computes the next occurrence of a subscription.
type OccurrenceAdvancer interface {
	// Next returns the occurrence after current. anchorDay is the intended
	// day-of-month; months shorter than it clamp to their last day.
	Next(current core.Date, anchorDay int) core.Date
}

// WeeklyAdvancer adds seven days. No calendar edge cases apply.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(current core.Date, _ int) core.Date {
	return current.AddDays(7)
}

// MonthlyAdvancer moves to anchorDay of the following month, clamped.
// Jan 31 -> Feb 28 -> Mar 31.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(current core.Date, anchorDay int) core.Date {
	return current.AddMonthsClamped(1, anchorDay)
}

// YearlyAdvancer moves to the same month next year, clamped. A Feb 29
// anchor gives Feb 28 in common years and Feb 29 again in leap years.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(current core.Date, anchorDay int) core.Date {
	return current.AddMonthsClamped(12, anchorDay)
}

// occurrenceStrategies maps frequencies to their advancers.
var occurrenceStrategies = map[core.Frequency]OccurrenceAdvancer{
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetOccurrenceAdvancer returns the advancer for a frequency, or
// ErrInvalidFrequency when none is registered.
func GetOccurrenceAdvancer(frequency core.Frequency) (OccurrenceAdvancer, error) {
	adv, ok := occurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, string(frequency))
	}
	return adv, nil
}

// NextOccurrence returns the occurrence after s.NextOccurrence.
func NextOccurrence(s core.Subscription) (core.Date, error) {
	adv, err := GetOccurrenceAdvancer(s.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	return adv.Next(s.NextOccurrence, s.AnchorDay), nil
}

// Occurrences lists the next n occurrences of s starting with the current one.
func Occurrences(s core.Subscription, n int) ([]core.Date, error) {
	adv, err := GetOccurrenceAdvancer(s.Frequency)
	if err != nil {
		return nil, err
	}
	out := make([]core.Date, 0, n)
	d := s.NextOccurrence
	for range n {
		out = append(out, d)
		d = adv.Next(d, s.AnchorDay)
	}
	return out, nil
}
