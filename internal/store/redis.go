package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
)

// RedisStore keeps each profile in a hash and its events in a list. Saves
// use WATCH/MULTI so a concurrent writer turns into ErrStale.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ProfileStore = (*RedisStore)(nil)

// OpenRedis connects to the server at url and verifies it with PING.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedis(client, prefix), nil
}

// NewRedis wraps an existing client. prefix defaults to "tutord:".
func NewRedis(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tutord:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) profileKey(id string) string { return s.prefix + "profile:" + id }
func (s *RedisStore) eventsKey(id string) string  { return s.prefix + "events:" + id }
func (s *RedisStore) learnersKey() string         { return s.prefix + "learners" }
func (s *RedisStore) seqKey() string              { return s.prefix + "event_seq" }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context, learnerID string) (*learner.Profile, error) {
	vals, err := s.client.HMGet(ctx, s.profileKey(learnerID), "revision", "data").Result()
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", learnerID, err)
	}
	revStr, ok1 := vals[0].(string)
	data, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, errs.NotFound("learner %q", learnerID)
	}
	rev, err := strconv.ParseInt(revStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: bad revision %q", learnerID, revStr)
	}
	p, err := decodeProfile([]byte(data), rev)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", learnerID, err)
	}
	return p, nil
}

func (s *RedisStore) Save(ctx context.Context, p *learner.Profile, events ...Event) error {
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}
	key := s.profileKey(p.LearnerID)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, "revision").Int64()
		if errors.Is(err, redis.Nil) {
			cur = 0
		} else if err != nil {
			return err
		}
		if cur != p.Revision {
			return fmt.Errorf("save profile %q at revision %d (stored %d): %w", p.LearnerID, p.Revision, cur, ErrStale)
		}

		var encoded []any
		if len(events) > 0 {
			last, err := tx.IncrBy(ctx, s.seqKey(), int64(len(events))).Result()
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			first := last - int64(len(events)) + 1
			for i, e := range events {
				e.Sequence = first + int64(i)
				e.LearnerID = p.LearnerID
				if e.Timestamp.IsZero() {
					e.Timestamp = now
				}
				b, err := json.Marshal(e)
				if err != nil {
					return fmt.Errorf("marshal %s event: %w", e.Kind, err)
				}
				encoded = append(encoded, b)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "revision", p.Revision+1, "data", data)
			pipe.SAdd(ctx, s.learnersKey(), p.LearnerID)
			if len(encoded) > 0 {
				pipe.RPush(ctx, s.eventsKey(p.LearnerID), encoded...)
			}
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("save profile %q: %w", p.LearnerID, ErrStale)
		}
		if errors.Is(err, ErrStale) {
			return err
		}
		return fmt.Errorf("save profile %q: %w", p.LearnerID, err)
	}
	p.Revision++
	return nil
}

func (s *RedisStore) Events(ctx context.Context, learnerID string, opts QueryOpts) ([]Event, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(learnerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	var out []Event
	for i := len(raw) - 1; i >= 0; i-- {
		var e Event
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		if e.Sequence <= opts.After {
			break
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.learnersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
