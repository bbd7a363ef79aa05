// Package redisstore keeps sessions in Redis so that several tenderd
// replicas can share them without a round trip to Postgres.
package redisstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/tenant"
)

const keyPrefix = "tenderd:session:"

var _ tenant.SessionStore = (*Store)(nil)

// Store implements tenant.SessionStore. Each session is one JSON value
// that expires together with the session.
type Store struct {
	client redis.UniversalClient
	clock  quartz.Clock
}

func New(client redis.UniversalClient, clock quartz.Clock) *Store {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Store{client: client, clock: clock}
}

// Dial parses a redis:// URL and verifies the server is reachable.
func Dial(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, xerrors.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// record carries the hashed secret, which database.Session hides from JSON.
type record struct {
	ID                   string        `json:"id"`
	HashedSecret         []byte        `json:"hashed_secret"`
	UserID               uuid.UUID     `json:"user_id"`
	ActiveOrganizationID uuid.NullUUID `json:"active_organization_id"`
	CreatedAt            time.Time     `json:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at"`
}

func (r record) session() database.Session {
	return database.Session(r)
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (database.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if xerrors.Is(err, redis.Nil) {
		return database.Session{}, sql.ErrNoRows
	}
	if err != nil {
		return database.Session{}, xerrors.Errorf("redis get: %w", err)
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return database.Session{}, xerrors.Errorf("decode session: %w", err)
	}
	return r.session(), nil
}

func (s *Store) InsertSession(ctx context.Context, arg database.InsertSessionParams) (database.Session, error) {
	r := record(arg)
	ttl := r.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return database.Session{}, xerrors.Errorf("session %q expires in the past", arg.ID)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return database.Session{}, xerrors.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key(r.ID), data, ttl).Result()
	if err != nil {
		return database.Session{}, xerrors.Errorf("redis set: %w", err)
	}
	if !ok {
		return database.Session{}, xerrors.Errorf("session %q already exists", arg.ID)
	}
	return r.session(), nil
}

func (s *Store) UpdateSessionActiveOrganization(ctx context.Context, arg database.UpdateSessionActiveOrganizationParams) (database.Session, error) {
	var updated record
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key(arg.ID)).Bytes()
		if xerrors.Is(err, redis.Nil) {
			return sql.ErrNoRows
		}
		if err != nil {
			return xerrors.Errorf("redis get: %w", err)
		}
		if err := json.Unmarshal(data, &updated); err != nil {
			return xerrors.Errorf("decode session: %w", err)
		}
		updated.ActiveOrganizationID = arg.ActiveOrganizationID
		data, err = json.Marshal(updated)
		if err != nil {
			return xerrors.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(arg.ID), data, redis.KeepTTL)
			return nil
		})
		return err
	}, key(arg.ID))
	if err != nil {
		return database.Session{}, err
	}
	return updated.session(), nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return xerrors.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
