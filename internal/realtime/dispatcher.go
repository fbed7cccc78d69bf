package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/sennadevos/Chat-Application/contracts/realtime/v1"
	"github.com/sennadevos/Chat-Application/internal/chat"
	"github.com/sennadevos/Chat-Application/internal/ids"
	"github.com/sennadevos/Chat-Application/internal/membership"
)

// Dispatcher fans a persisted message out to the private address of every
// member in the channel's membership snapshot.
//
// Consistency model:
//   - One atomic snapshot per dispatch; a member removed after the snapshot
//     still receives the message (read-committed at snapshot time).
//   - The author is part of the snapshot and receives its own message back.
//   - Dispatches for the same channel are serialized, so each recipient
//     observes that channel's messages in submission order. Dispatches for
//     different channels proceed in parallel.
//   - Delivery per recipient is independent and best-effort: an unreachable
//     member is logged and counted, never retried or queued, and never
//     surfaced to the sender.
type Dispatcher struct {
	log     *slog.Logger
	members *membership.Store
	hub     *Hub
	metrics *Metrics

	mu       sync.Mutex
	channels map[string]*sync.Mutex
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(log *slog.Logger, members *membership.Store, hub *Hub, metrics *Metrics) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		log:      log,
		members:  members,
		hub:      hub,
		metrics:  metrics,
		channels: make(map[string]*sync.Mutex),
	}
}

func (d *Dispatcher) channelLock(channelID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.channels[channelID]
	if !ok {
		l = &sync.Mutex{}
		d.channels[channelID] = l
	}
	return l
}

// Dispatch resolves a membership snapshot for the message's channel and
// delivers the message to every member. Returns membership.ErrChannelNotFound
// when the channel is unknown; per-recipient failures are swallowed.
func (d *Dispatcher) Dispatch(msg chat.Message) error {
	lock := d.channelLock(msg.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	// One atomic read; concurrent membership changes from here on do not
	// affect this fan-out.
	snap, err := d.members.Snapshot(msg.ChannelID)
	if err != nil {
		return err
	}

	env, err := newMessageEnvelope(msg)
	if err != nil {
		return err
	}

	d.metrics.dispatched()

	for _, userID := range snap.Members() {
		if d.hub.Deliver(userID, env) {
			d.metrics.delivered()
			continue
		}
		d.metrics.unreachable()
		d.log.Debug("dispatch.deliver.unreachable",
			"channel_id", msg.ChannelID,
			"message_id", msg.ID,
			"user_id", userID,
		)
	}
	return nil
}

func newMessageEnvelope(msg chat.Message) (v1.Envelope, error) {
	payload, err := json.Marshal(v1.MessageNewPayload{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return v1.Envelope{}, err
	}
	return newEnvelope(v1.TypeMessageNew, payload), nil
}

func newEnvelope(typ string, payload json.RawMessage) v1.Envelope {
	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		id = ""
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      now,
		Payload: payload,
	}
}
