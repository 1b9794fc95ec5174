package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// newOrderNumber renders ORD-YYYYMMDD-XXXXXXXX from the creation date and
// eight hex characters of a fresh uuid.
func newOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + at.UTC().Format("20060102") + "-" + suffix
}
