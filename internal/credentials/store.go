package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/satyaki-up/bugit/internal/launchpad"
)

var ErrNotCached = errors.New("no cached credentials")

const sqliteTimeLayout = "2006-01-02 15:04:05"

type Credentials struct {
	Consumer  string    `json:"consumer"`
	Instance  string    `json:"instance"`
	Token     string    `json:"-"`
	Secret    string    `json:"-"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Credentials) OAuth() launchpad.Credentials {
	return launchpad.Credentials{ConsumerKey: c.Consumer, Token: c.Token, Secret: c.Secret}
}

// Store caches access tokens per consumer name and Launchpad instance.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context, consumer, instance string) (*Credentials, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT consumer, instance, access_token, access_secret, context, created_at
		FROM credentials
		WHERE consumer = ? AND instance = ?
	`, consumer, instance)

	var c Credentials
	var created string
	if err := row.Scan(&c.Consumer, &c.Instance, &c.Token, &c.Secret, &c.Context, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w for %s on %s", ErrNotCached, consumer, instance)
		}
		return nil, err
	}
	createdAt, err := parseSQLiteTime(created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", consumer, err)
	}
	c.CreatedAt = createdAt
	return &c, nil
}

func (s *Store) Save(ctx context.Context, c Credentials) error {
	if strings.TrimSpace(c.Consumer) == "" || strings.TrimSpace(c.Instance) == "" {
		return fmt.Errorf("credentials need a consumer and an instance")
	}
	if c.Token == "" {
		return fmt.Errorf("credentials for %s have no access token", c.Consumer)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials(consumer, instance, access_token, access_secret, context, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(consumer, instance) DO UPDATE SET
			access_token = excluded.access_token,
			access_secret = excluded.access_secret,
			context = excluded.context,
			created_at = excluded.created_at
	`, c.Consumer, c.Instance, c.Token, c.Secret, c.Context)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, consumer, instance string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE consumer = ? AND instance = ?`, consumer, instance); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func parseSQLiteTime(value string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, value, time.UTC)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
