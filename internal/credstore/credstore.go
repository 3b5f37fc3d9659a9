package credstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

const (
	fieldCommunityID = "community_id"
	fieldUsername    = "username"
	fieldPassword    = "password"
	fieldSavedAt     = "saved_at"
)

// Store keeps the bootstrap credential in a single Redis hash so later runs
// can log in without creating another community.
type Store struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
	now func() time.Time
}

// New connects to redisURL (redis:// or rediss://) and pings it.
func New(ctx context.Context, redisURL, key string, log *logger.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("missing redis url")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("missing credential key")
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{
		log: log.With("component", "credstore"),
		rdb: rdb,
		key: key,
		now: time.Now,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Load returns the zero credential when nothing has been saved.
func (s *Store) Load(ctx context.Context) (domain.Credential, error) {
	if s == nil || s.rdb == nil {
		return domain.Credential{}, fmt.Errorf("credential store not initialized")
	}
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return domain.Credential{}, err
	}
	return decode(fields)
}

func (s *Store) Save(ctx context.Context, cred domain.Credential) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("credential store not initialized")
	}
	if cred.IsZero() {
		return fmt.Errorf("refusing to store an incomplete credential")
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key)
	pipe.HSet(ctx, s.key, encode(cred, s.now()))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.log.Debug("credential stored", "key", s.key, "community_id", cred.CommunityID.String())
	return nil
}

// Clear forgets the stored credential.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("credential store not initialized")
	}
	return s.rdb.Del(ctx, s.key).Err()
}

func encode(cred domain.Credential, now time.Time) map[string]interface{} {
	out := map[string]interface{}{
		fieldPassword: cred.Password,
		fieldSavedAt:  domain.Timestamp(now),
	}
	if !cred.CommunityID.IsZero() {
		out[fieldCommunityID] = cred.CommunityID.Raw()
	}
	if cred.Username != "" {
		out[fieldUsername] = cred.Username
	}
	return out
}

func decode(fields map[string]string) (domain.Credential, error) {
	if len(fields) == 0 {
		return domain.Credential{}, nil
	}
	id, err := domain.ParseID([]byte(fields[fieldCommunityID]))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("stored community_id: %w", err)
	}
	return domain.Credential{
		CommunityID: id,
		Username:    fields[fieldUsername],
		Password:    fields[fieldPassword],
	}, nil
}
