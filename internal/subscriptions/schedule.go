package subscriptions

import (
	"time"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// DefaultUpcomingCount is how many future dates read models show.
const DefaultUpcomingCount = 5

// UpcomingDeliveries lists count delivery dates starting at next, stepping by
// the frequency's fixed interval. Invalid frequencies or non-positive counts
// yield an empty list.
func UpcomingDeliveries(next time.Time, frequency enums.SubscriptionFrequency, count int) []time.Time {
	days := frequency.IntervalDays()
	if days == 0 || count <= 0 {
		return []time.Time{}
	}
	dates := make([]time.Time, 0, count)
	current := dateOnly(next)
	for i := 0; i < count; i++ {
		dates = append(dates, current)
		current = current.AddDate(0, 0, days)
	}
	return dates
}

// NextAfter is the delivery date that follows next.
func NextAfter(next time.Time, frequency enums.SubscriptionFrequency) time.Time {
	return dateOnly(next).AddDate(0, 0, frequency.IntervalDays())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
