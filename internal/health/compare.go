// internal/health/compare.go
package health

import "github.com/tamzrod/ftbridge/internal/bus"

// Changed reports whether a sample differs from the previous one in state
// or in either error counter.
func Changed(prev, cur bus.Status) bool {
	return prev.State != cur.State ||
		prev.Counts.TX != cur.Counts.TX ||
		prev.Counts.RX != cur.Counts.RX
}
