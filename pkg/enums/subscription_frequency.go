package enums

import (
	"fmt"
	"time"
)

// SubscriptionFrequency is the delivery cadence of a recurring subscription.
type SubscriptionFrequency string

const (
	FrequencyWeekly   SubscriptionFrequency = "weekly"
	FrequencyBiweekly SubscriptionFrequency = "biweekly"
	FrequencyMonthly  SubscriptionFrequency = "monthly"
	FrequencyYearly   SubscriptionFrequency = "yearly"
)

var frequencyDays = map[SubscriptionFrequency]int{
	FrequencyWeekly:   7,
	FrequencyBiweekly: 14,
	FrequencyMonthly:  30,
	FrequencyYearly:   365,
}

func (f SubscriptionFrequency) String() string {
	return string(f)
}

func (f SubscriptionFrequency) IsValid() bool {
	_, ok := frequencyDays[f]
	return ok
}

// IntervalDays returns the fixed day step for the frequency, or 0 when invalid.
func (f SubscriptionFrequency) IntervalDays() int {
	return frequencyDays[f]
}

// Interval is IntervalDays as a duration.
func (f SubscriptionFrequency) Interval() time.Duration {
	return time.Duration(f.IntervalDays()) * 24 * time.Hour
}

func ParseSubscriptionFrequency(value string) (SubscriptionFrequency, error) {
	candidate := SubscriptionFrequency(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid subscription frequency %q", value)
	}
	return candidate, nil
}
