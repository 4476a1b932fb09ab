package lockdown

import (
	"sync"
	"time"

	"github.com/zaqqye/examguard/internal/models"
)

// Signal is a raw integrity observation on its way to becoming a reported
// violation.
type Signal struct {
	Type        models.ViolationType
	Description string
	Details     string
}

// DefaultCooldown is the suppression window for repeated identical signals.
const DefaultCooldown = 1500 * time.Millisecond

// Classifier deduplicates bursts of identical signals before they reach the
// network. A signal is suppressed iff the same (type, details) pair was last
// emitted less than the cooldown ago; two different apps or shortcuts both
// pass even within the same instant.
type Classifier struct {
	mu       sync.Mutex
	cooldown time.Duration

	lastType    models.ViolationType
	lastDetails string
	lastAt      time.Time
}

func NewClassifier(cooldown time.Duration) *Classifier {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Classifier{cooldown: cooldown}
}

// Classify reports whether the signal should be emitted (true) or
// suppressed as a duplicate burst (false).
func (c *Classifier) Classify(sig Signal, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sig.Type == c.lastType && sig.Details == c.lastDetails &&
		now.Sub(c.lastAt) < c.cooldown {
		return false
	}
	c.lastType = sig.Type
	c.lastDetails = sig.Details
	c.lastAt = now
	return true
}

// Reset clears the dedup state; called on lockdown stop.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastType = ""
	c.lastDetails = ""
	c.lastAt = time.Time{}
}
