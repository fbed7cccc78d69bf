package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	v1 "github.com/sennadevos/Chat-Application/contracts/realtime/v1"
	"github.com/sennadevos/Chat-Application/internal/auth"
	"github.com/sennadevos/Chat-Application/internal/ids"
)

const (
	wsSubprotocolV1 = "chat.realtime.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsCloseGrace          = 1 * time.Second

	wsMaxFrameBytes   = 16 << 10 // clients only send control-ish frames
	wsMaxPingFailures = 3

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
)

// WSGateway is the WebSocket entrypoint for the realtime stream.
//
// The handshake authenticator runs before the upgrade: a missing or invalid
// token query parameter rejects the request with 401 and no connection is
// established. The stream itself is receive-only; messages are posted over
// the HTTP API and fan out through the Hub.
type WSGateway struct {
	log     *slog.Logger
	authn   *auth.Authenticator
	hub     *Hub
	metrics *Metrics

	originPatterns []string
	devInsecure    bool

	writeTimeout  time.Duration
	sendQueueSize int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// NewWSGateway constructs a gateway with env-tunable limits.
func NewWSGateway(log *slog.Logger, authn *auth.Authenticator, hub *Hub, metrics *Metrics) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}

	g := &WSGateway{
		log:     log,
		authn:   authn,
		hub:     hub,
		metrics: metrics,
	}

	g.originPatterns = envCSVWS("CHATD_WS_ALLOWED_ORIGINS", "localhost,127.0.0.1")
	g.devInsecure = envBoolWS("CHATD_WS_DEV_INSECURE", false)

	g.writeTimeout = envDurationWS("CHATD_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)

	g.sendQueueSize = envIntWS("CHATD_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("CHATD_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("CHATD_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	return g
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates the upgrade attempt, accepts the WebSocket, and runs
// the delivery loop until the peer disconnects.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Authentication happens before the upgrade; no handler state exists yet
	// when it fails. The token location for this transport is the "token"
	// query parameter.
	principal, err := g.authn.Authenticate(ctx, r, auth.QueryToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoToken):
			g.log.Info("ws.reject.no_token", "remote", r.RemoteAddr)
			http.Error(w, "missing token", http.StatusUnauthorized)
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
			g.log.Info("ws.reject.invalid_token", "remote", r.RemoteAddr)
			http.Error(w, "invalid token", http.StatusUnauthorized)
		case errors.Is(err, context.Canceled):
			// Peer went away mid-handshake; nothing was installed.
		default:
			g.log.Error("ws.auth.fail", "err", err)
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{wsSubprotocolV1},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(wsMaxFrameBytes)

	sessionID, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session id")
		return
	}

	// The Principal is fixed for the lifetime of the connection.
	ctx = auth.WithPrincipal(ctx, principal)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := NewClient(principal.UserID, sessionID, g.sendQueueSize)
	g.hub.Register(client)
	g.metrics.connOpened()
	defer g.metrics.connClosed()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.Unregister(principal.UserID, sessionID)
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	g.sendHelloAck(ctx, client, principal.UserID)

	// Receive-only stream: the read loop exists to notice the peer closing
	// and to bounce any unexpected client frames.
	for {
		mt, _, err := conn.Read(ctx)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break
		}
		if mt == websocket.MessageText || mt == websocket.MessageBinary {
			g.trySendError(ctx, client, "unsupported", "this stream is receive-only")
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- send helpers ----

func (g *WSGateway) sendHelloAck(ctx context.Context, client *Client, userID string) {
	p, _ := json.Marshal(v1.HelloAckPayload{UserID: userID})
	g.enqueue(ctx, client, newEnvelope(v1.TypeHelloAck, p))
}

func (g *WSGateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	g.enqueue(ctx, client, newEnvelope(v1.TypeError, p))
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
