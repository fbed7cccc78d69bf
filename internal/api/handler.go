// Package api implements the HTTP surface of the chat service: account and
// session endpoints, channel and membership administration, message history,
// and the message submission path that feeds the realtime dispatcher.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sennadevos/Chat-Application/internal/auth"
	"github.com/sennadevos/Chat-Application/internal/chat"
	"github.com/sennadevos/Chat-Application/internal/identity"
	"github.com/sennadevos/Chat-Application/internal/ids"
	"github.com/sennadevos/Chat-Application/internal/membership"
	"github.com/sennadevos/Chat-Application/internal/realtime"
	"github.com/sennadevos/Chat-Application/internal/session"
)

const (
	maxChannelNameLen = 128
	maxMessageLen     = 4000

	// A syntactically valid Argon2id hash that matches no password. Login
	// verifies against it when the username is unknown so both outcomes cost
	// one hash computation.
	dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

// Handler carries the collaborators behind the HTTP routes.
type Handler struct {
	log        *slog.Logger
	registry   *session.Registry
	users      identity.Store
	channels   chat.ChannelStore
	messages   chat.MessageStore
	members    *membership.Store
	dispatcher *realtime.Dispatcher

	version string
	started time.Time
}

// NewHandler constructs the API handler.
func NewHandler(
	log *slog.Logger,
	registry *session.Registry,
	users identity.Store,
	channels chat.ChannelStore,
	messages chat.MessageStore,
	members *membership.Store,
	dispatcher *realtime.Dispatcher,
	version string,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:        log,
		registry:   registry,
		users:      users,
		channels:   channels,
		messages:   messages,
		members:    members,
		dispatcher: dispatcher,
		version:    version,
		started:    time.Now(),
	}
}

// Register mounts all API routes on mux. Authentication and the route policy
// run in middleware around the mux, not here.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("GET /info", h.handleInfo)

	mux.HandleFunc("GET /channels", h.handleListChannels)
	mux.HandleFunc("POST /channels", h.handleCreateChannel)
	mux.HandleFunc("GET /channels/{id}", h.handleGetChannel)
	mux.HandleFunc("GET /channels/{id}/members", h.handleListMembers)
	mux.HandleFunc("POST /channels/{id}/members", h.handleAddMember)
	mux.HandleFunc("DELETE /channels/{id}/members/{userID}", h.handleRemoveMember)
	mux.HandleFunc("GET /channels/{id}/messages", h.handleListMessages)
	mux.HandleFunc("POST /channels/{id}/messages", h.handlePostMessage)

	mux.HandleFunc("GET /users", h.handleListUsers)
}

// ---- auth ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "bad_request", msg)
		return
	}

	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		h.internal(w, "users.id.fail", err)
		return
	}

	u := identity.User{
		ID:           id,
		Username:     strings.TrimSpace(req.Username),
		Role:         identity.RoleMember,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, identity.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username_taken", "username already in use")
			return
		}
		h.internal(w, "users.create.fail", err)
		return
	}

	h.log.Info("api.user.register", "user_id", u.ID, "username", u.Username)
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "username and password are required")
		return
	}

	u, err := h.users.FindUserByUsername(r.Context(), req.Username)
	hash := dummyPasswordHash
	known := err == nil
	if known {
		hash = u.PasswordHash
	} else if !errors.Is(err, identity.ErrNotFound) {
		h.internal(w, "users.lookup.fail", err)
		return
	}

	ok, err := identity.VerifyPassword(req.Password, hash)
	if err != nil && !errors.Is(err, identity.ErrInvalidHash) {
		h.internal(w, "password.verify.fail", err)
		return
	}
	if !known || !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	token, expiresAt, err := h.registry.Issue(u.ID)
	if err != nil {
		h.internal(w, "session.issue.fail", err)
		return
	}

	h.log.Info("api.session.login", "user_id", u.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserDTO(u),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// The middleware already validated the token; revocation only needs the
	// raw value back.
	token, err := auth.HeaderToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	h.registry.Revoke(token)

	if p, ok := auth.FromContext(r.Context()); ok {
		h.log.Info("api.session.logout", "user_id", p.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- service meta ----

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Sessions:      h.registry.Len(),
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{Name: "chatd", Version: h.version})
}

// ---- channels ----

func (h *Handler) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req createChannelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	if len(name) > maxChannelNameLen {
		writeError(w, http.StatusBadRequest, "bad_request", "name too long")
		return
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		h.internal(w, "channels.id.fail", err)
		return
	}

	c := chat.Channel{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	if err := h.channels.SaveChannel(r.Context(), c); err != nil {
		h.internal(w, "channels.save.fail", err)
		return
	}

	// The creator joins its own channel. Write-through: the durable relation
	// first, then the live membership view the dispatcher reads.
	if err := h.channels.AddMember(r.Context(), c.ID, p.UserID); err != nil {
		h.internal(w, "channels.member.add.fail", err)
		return
	}
	h.members.Register(c.ID)
	if err := h.members.AddMember(c.ID, p.UserID); err != nil {
		h.internal(w, "membership.add.fail", err)
		return
	}

	h.log.Info("api.channel.create", "channel_id", c.ID, "user_id", p.UserID)
	writeJSON(w, http.StatusCreated, toChannelDTO(c))
}

// handleListChannels returns the channels the caller belongs to, resolved
// through the reverse view of the live membership relation.
func (h *Handler) handleListChannels(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	out := []channelDTO{}
	for _, channelID := range h.members.ChannelsOf(p.UserID) {
		c, err := h.channels.FindByID(r.Context(), channelID)
		if err != nil {
			if errors.Is(err, chat.ErrChannelNotFound) {
				// Live view can briefly lead the durable store; skip.
				continue
			}
			h.internal(w, "channels.lookup.fail", err)
			return
		}
		out = append(out, toChannelDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	c, err := h.channels.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.channelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelDTO(c))
}

// ---- members ----

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	channelID := r.PathValue("id")

	if !h.requireMembership(w, channelID, p.UserID) {
		return
	}

	snap, err := h.members.Snapshot(channelID)
	if err != nil {
		h.channelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membersResponse{ChannelID: channelID, Members: snap.Members()})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	channelID := r.PathValue("id")

	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	// Existing members invite; admins manage any channel.
	if p.Role != identity.RoleAdmin && !h.requireMembership(w, channelID, p.UserID) {
		return
	}

	if _, err := h.users.FindUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", "user does not exist")
			return
		}
		h.internal(w, "users.lookup.fail", err)
		return
	}

	if err := h.channels.AddMember(r.Context(), channelID, req.UserID); err != nil {
		h.channelError(w, err)
		return
	}
	if err := h.members.AddMember(channelID, req.UserID); err != nil {
		h.channelError(w, err)
		return
	}

	h.log.Info("api.channel.member.add", "channel_id", channelID, "user_id", req.UserID, "by", p.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	channelID := r.PathValue("id")
	userID := r.PathValue("userID")

	// Members may leave; removing someone else takes the admin role.
	if userID != p.UserID && p.Role != identity.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "cannot remove another member")
		return
	}

	if err := h.channels.RemoveMember(r.Context(), channelID, userID); err != nil {
		h.channelError(w, err)
		return
	}
	if err := h.members.RemoveMember(channelID, userID); err != nil {
		h.channelError(w, err)
		return
	}

	h.log.Info("api.channel.member.remove", "channel_id", channelID, "user_id", userID, "by", p.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ---- messages ----

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	channelID := r.PathValue("id")

	if !h.requireMembership(w, channelID, p.UserID) {
		return
	}

	page := chat.Page{
		Number: queryInt(r, "page", 0),
		Size:   queryInt(r, "size", 0),
	}
	mp, err := h.messages.FindByChannel(r.Context(), channelID, page)
	if err != nil {
		h.channelError(w, err)
		return
	}

	out := make([]messageDTO, 0, len(mp.Messages))
	for _, m := range mp.Messages {
		out = append(out, toMessageDTO(m))
	}
	writeJSON(w, http.StatusOK, messagePageResponse{
		Messages: out,
		Page:     page.Number,
		Size:     len(out),
		Total:    mp.Total,
		HasMore:  mp.HasMore,
	})
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	channelID := r.PathValue("id")

	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "content is required")
		return
	}
	if len(content) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "bad_request", "content too long")
		return
	}

	// Membership is re-checked here, at the moment of the action. A stale
	// authorization decision from connection time is never reused.
	if !h.requireMembership(w, channelID, p.UserID) {
		return
	}

	msg, err := h.messages.SaveMessage(r.Context(), chat.Message{
		ChannelID: channelID,
		AuthorID:  p.UserID,
		Content:   content,
	})
	if err != nil {
		h.channelError(w, err)
		return
	}

	// Fan-out after persistence. Delivery is best-effort; a dispatch problem
	// never fails the request once the message is stored.
	if err := h.dispatcher.Dispatch(msg); err != nil {
		h.log.Error("api.message.dispatch.fail", "channel_id", channelID, "message_id", msg.ID, "err", err)
	}

	writeJSON(w, http.StatusCreated, toMessageDTO(msg))
}

// ---- admin ----

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.internal(w, "users.list.fail", err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- helpers ----

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		// The policy should have rejected the request already; treat a missing
		// principal on a protected route as a wiring bug, not a user error.
		h.log.Error("api.principal.missing", "path", r.URL.Path)
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return auth.Principal{}, false
	}
	return p, true
}

// requireMembership enforces channel membership, writing the deny response
// itself. Returns true when the caller may proceed.
func (h *Handler) requireMembership(w http.ResponseWriter, channelID, userID string) bool {
	ok, err := h.members.IsMember(channelID, userID)
	if err != nil {
		h.channelError(w, err)
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "not_a_member", "channel membership required")
		return false
	}
	return true
}

func (h *Handler) channelError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrChannelNotFound) || errors.Is(err, membership.ErrChannelNotFound) {
		writeError(w, http.StatusNotFound, "channel_not_found", "channel does not exist")
		return
	}
	h.internal(w, "channels.op.fail", err)
}

func (h *Handler) internal(w http.ResponseWriter, event string, err error) {
	h.log.Error("api."+event, "err", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
