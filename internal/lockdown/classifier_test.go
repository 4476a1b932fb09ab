package lockdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zaqqye/examguard/internal/models"
)

func TestClassifierSuppressesBursts(t *testing.T) {
	c := NewClassifier(1500 * time.Millisecond)
	base := time.Now()
	sig := Signal{Type: models.ViolationShortcutBlocked, Details: "alt+tab"}

	assert.True(t, c.Classify(sig, base))
	assert.False(t, c.Classify(sig, base.Add(100*time.Millisecond)))
	assert.False(t, c.Classify(sig, base.Add(1400*time.Millisecond)))
}

func TestClassifierPassesAfterCooldown(t *testing.T) {
	c := NewClassifier(1500 * time.Millisecond)
	base := time.Now()
	sig := Signal{Type: models.ViolationShortcutBlocked, Details: "alt+tab"}

	assert.True(t, c.Classify(sig, base))
	assert.True(t, c.Classify(sig, base.Add(1500*time.Millisecond)))
}

func TestClassifierDistinguishesDetails(t *testing.T) {
	c := NewClassifier(1500 * time.Millisecond)
	base := time.Now()

	assert.True(t, c.Classify(Signal{Type: models.ViolationShortcutBlocked, Details: "alt+tab"}, base))
	// Different combo at the same instant is not a duplicate.
	assert.True(t, c.Classify(Signal{Type: models.ViolationShortcutBlocked, Details: "win+d"}, base))
	// Same details under a different type is not a duplicate either.
	assert.True(t, c.Classify(Signal{Type: models.ViolationKeyBlocked, Details: "win+d"}, base))
}

func TestClassifierSingleSlotState(t *testing.T) {
	c := NewClassifier(1500 * time.Millisecond)
	base := time.Now()
	a := Signal{Type: models.ViolationShortcutBlocked, Details: "alt+tab"}
	b := Signal{Type: models.ViolationShortcutBlocked, Details: "win+d"}

	// Only the most recent pair is remembered, so alternating signals all
	// pass.
	assert.True(t, c.Classify(a, base))
	assert.True(t, c.Classify(b, base.Add(10*time.Millisecond)))
	assert.True(t, c.Classify(a, base.Add(20*time.Millisecond)))
}

func TestClassifierReset(t *testing.T) {
	c := NewClassifier(1500 * time.Millisecond)
	base := time.Now()
	sig := Signal{Type: models.ViolationFocusLost, Details: ""}

	assert.True(t, c.Classify(sig, base))
	c.Reset()
	assert.True(t, c.Classify(sig, base.Add(time.Millisecond)))
}
