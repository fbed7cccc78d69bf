package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sennadevos/Chat-Application/internal/ids"
)

// PostgresStore implements MessageStore and ChannelStore on PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "chat").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "chat",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// SaveMessage persists a message, assigning ID and CreatedAt when unset.
func (s *PostgresStore) SaveMessage(ctx context.Context, m Message) (Message, error) {
	if m.ChannelID == "" || m.AuthorID == "" {
		return Message{}, errors.New("chat: invalid message")
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.ID == "" {
		id, err := ids.NewULID(m.CreatedAt)
		if err != nil {
			return Message{}, err
		}
		m.ID = id
	}

	if _, err := s.FindByID(ctx, m.ChannelID); err != nil {
		return Message{}, err
	}

	messages := pgIdent(s.schema, "messages")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (id, channel_id, author_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ChannelID, m.AuthorID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// FindByChannel returns one page of messages in ascending id order.
func (s *PostgresStore) FindByChannel(ctx context.Context, channelID string, page Page) (MessagePage, error) {
	if _, err := s.FindByID(ctx, channelID); err != nil {
		return MessagePage{}, err
	}

	size := page.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	number := page.Number
	if number < 0 {
		number = 0
	}

	messages := pgIdent(s.schema, "messages")

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM `+messages+` WHERE channel_id = $1`,
		channelID,
	).Scan(&total); err != nil {
		return MessagePage{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, channel_id, author_id, content, created_at
		 FROM `+messages+`
		 WHERE channel_id = $1
		 ORDER BY id ASC
		 LIMIT $2 OFFSET $3`,
		channelID, size, number*size,
	)
	if err != nil {
		return MessagePage{}, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt); err != nil {
			return MessagePage{}, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return MessagePage{}, err
	}

	return MessagePage{
		Messages: out,
		Total:    total,
		HasMore:  (number+1)*size < total,
	}, nil
}

// FindByID resolves a channel by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Channel, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Channel{}, ErrChannelNotFound
	}

	channels := pgIdent(s.schema, "channels")

	var c Channel
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM `+channels+` WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Channel{}, ErrChannelNotFound
	}
	if err != nil {
		return Channel{}, err
	}
	return c, nil
}

// SaveChannel upserts a channel row.
func (s *PostgresStore) SaveChannel(ctx context.Context, c Channel) error {
	channels := pgIdent(s.schema, "channels")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+channels+` (id, name, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		c.ID, c.Name, c.CreatedAt,
	)
	return err
}

// AddMember inserts the relation row. Idempotent via ON CONFLICT.
func (s *PostgresStore) AddMember(ctx context.Context, channelID, userID string) error {
	if _, err := s.FindByID(ctx, channelID); err != nil {
		return err
	}

	members := pgIdent(s.schema, "channel_members")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+members+` (channel_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		channelID, userID,
	)
	return err
}

// RemoveMember deletes the relation row. Removing a non-member is a no-op.
func (s *PostgresStore) RemoveMember(ctx context.Context, channelID, userID string) error {
	if _, err := s.FindByID(ctx, channelID); err != nil {
		return err
	}

	members := pgIdent(s.schema, "channel_members")
	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+members+` WHERE channel_id = $1 AND user_id = $2`,
		channelID, userID,
	)
	return err
}

// ListMembers returns the member ids of a channel, sorted.
func (s *PostgresStore) ListMembers(ctx context.Context, channelID string) ([]string, error) {
	if _, err := s.FindByID(ctx, channelID); err != nil {
		return nil, err
	}

	members := pgIdent(s.schema, "channel_members")
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM `+members+` WHERE channel_id = $1 ORDER BY user_id`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListChannels returns all channels ordered by id.
func (s *PostgresStore) ListChannels(ctx context.Context) ([]Channel, error) {
	channels := pgIdent(s.schema, "channels")

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM `+channels+` ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMemberships returns every (channel, user) relation row.
func (s *PostgresStore) ListMemberships(ctx context.Context) ([]Membership, error) {
	members := pgIdent(s.schema, "channel_members")

	rows, err := s.pool.Query(ctx,
		`SELECT channel_id, user_id FROM `+members+` ORDER BY channel_id, user_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ChannelID, &m.UserID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent quotes schema.table for safe interpolation into SQL text.
func pgIdent(schema, table string) string {
	return `"` + schema + `"."` + table + `"`
}
