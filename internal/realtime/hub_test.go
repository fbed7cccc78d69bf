package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	v1 "github.com/sennadevos/Chat-Application/contracts/realtime/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEnvelope(t *testing.T, id string) v1.Envelope {
	t.Helper()
	return newEnvelope(v1.TypeMessageNew, json.RawMessage(`{"message_id":"`+id+`"}`))
}

func TestHubDeliverOfflineUser(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	if h.Deliver("nobody", testEnvelope(t, "m1")) {
		t.Fatal("Deliver to offline user should report unreachable")
	}
}

func TestHubDeliverFansOutToAllSessions(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	a := NewClient("u1", "s1", 4)
	b := NewClient("u1", "s2", 4)
	h.Register(a)
	h.Register(b)

	if got := h.Connections("u1"); got != 2 {
		t.Fatalf("Connections = %d, want 2", got)
	}
	if !h.Deliver("u1", testEnvelope(t, "m1")) {
		t.Fatal("Deliver should succeed with live clients")
	}

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.Send:
			if env.Type != v1.TypeMessageNew {
				t.Fatalf("session %s: envelope type = %q", c.SessionID, env.Type)
			}
		default:
			t.Fatalf("session %s: no envelope enqueued", c.SessionID)
		}
	}
}

func TestHubDeliverDropsOnFullQueue(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient("u1", "s1", 1)
	h.Register(c)

	if !h.Deliver("u1", testEnvelope(t, "m1")) {
		t.Fatal("first delivery should fill the queue")
	}
	// Queue is full now; the second delivery must drop, not block.
	if h.Deliver("u1", testEnvelope(t, "m2")) {
		t.Fatal("delivery to a full queue should report unreachable")
	}
	if got := len(c.Send); got != 1 {
		t.Fatalf("queued envelopes = %d, want 1", got)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient("u1", "s1", 4)
	h.Register(c)
	h.Unregister("u1", "s1")

	select {
	case <-c.Done():
	default:
		t.Fatal("Unregister should close the client")
	}
	if h.Deliver("u1", testEnvelope(t, "m1")) {
		t.Fatal("Deliver after Unregister should report unreachable")
	}
	if got := h.Connections("u1"); got != 0 {
		t.Fatalf("Connections = %d, want 0", got)
	}
}

func TestHubUnregisterUnknownSessionIsNoop(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	c := NewClient("u1", "s1", 4)
	h.Register(c)

	h.Unregister("u1", "other")
	h.Unregister("ghost", "s1")

	if got := h.Connections("u1"); got != 1 {
		t.Fatalf("Connections = %d, want 1", got)
	}
	select {
	case <-c.Done():
		t.Fatal("surviving client should not be closed")
	default:
	}
}

func TestClientCloseIdempotent(t *testing.T) {
	t.Parallel()

	c := NewClient("u1", "s1", 4)
	c.Close()
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}
