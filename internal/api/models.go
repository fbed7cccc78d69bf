package api

import (
	"strings"
	"time"

	"github.com/sennadevos/Chat-Application/internal/chat"
	"github.com/sennadevos/Chat-Application/internal/identity"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r registerRequest) validate() string {
	if strings.TrimSpace(r.Username) == "" {
		return "username is required"
	}
	if len(r.Username) > 64 {
		return "username must be at most 64 characters"
	}
	if r.Password == "" {
		return "password is required"
	}
	return ""
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

type userDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u identity.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Username:  u.Username,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type createChannelRequest struct {
	Name string `json:"name"`
}

type channelDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toChannelDTO(c chat.Channel) channelDTO {
	return channelDTO{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

type membersResponse struct {
	ChannelID string   `json:"channel_id"`
	Members   []string `json:"members"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

type messageDTO struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageDTO(m chat.Message) messageDTO {
	return messageDTO{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

type messagePageResponse struct {
	Messages []messageDTO `json:"messages"`
	Page     int          `json:"page"`
	Size     int          `json:"size"`
	Total    int          `json:"total"`
	HasMore  bool         `json:"has_more"`
}

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sessions      int    `json:"sessions"`
}

type infoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
