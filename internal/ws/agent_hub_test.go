package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentHubDeliversToOwningAttempt(t *testing.T) {
	h := NewAgentHub()
	go h.Run()

	owner := newAgentClient(h, nil, "attempt-1")
	other := newAgentClient(h, nil, "attempt-2")
	h.register <- owner
	h.register <- other

	h.Notify("attempt-1", AgentMessage{Type: AgentTerminate, Reason: "admin_terminated"})

	select {
	case payload := <-owner.send:
		var msg AgentMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, AgentTerminate, msg.Type)
		assert.Equal(t, "admin_terminated", msg.Reason)
	case <-time.After(time.Second):
		t.Fatal("terminate order never delivered")
	}

	select {
	case payload := <-other.send:
		t.Fatalf("wrong attempt received order: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAgentHubUnknownAttemptIsDropped(t *testing.T) {
	h := NewAgentHub()
	go h.Run()

	// No client holds the attempt; Notify must not block or panic.
	h.Notify("attempt-9", AgentMessage{Type: AgentTerminate})
}

func TestAgentHubNilSafe(t *testing.T) {
	var h *AgentHub
	h.Notify("attempt-1", AgentMessage{Type: AgentTerminate})
}
