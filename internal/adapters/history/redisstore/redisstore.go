// Package redisstore keeps history rows in Redis.
//
// Layout under a key prefix:
//
//	<prefix>:header      list of header columns
//	<prefix>:days        sorted set of saved days scored by unix time
//	<prefix>:day:<date>  hash of student name to JSON row
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/domain/model"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "marksense"

// Store persists history in Redis.
type Store struct {
	client *redis.Client
	prefix string
}

var _ history.Backend = (*Store)(nil)

// Open connects to the Redis URL and verifies the connection.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("redis: URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) headerKey() string { return s.prefix + ":header" }
func (s *Store) daysKey() string   { return s.prefix + ":days" }
func (s *Store) dayKey(day string) string {
	return s.prefix + ":day:" + day
}

func (s *Store) Header(ctx context.Context) ([]string, error) {
	header, err := s.client.LRange(ctx, s.headerKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read header: %w", err)
	}
	return header, nil
}

func (s *Store) WriteHeader(ctx context.Context, header []string) error {
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.headerKey())
		if len(cols) > 0 {
			p.RPush(ctx, s.headerKey(), cols...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: write header: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, rows []model.HistoryRow) error {
	type entry struct {
		day  time.Time
		name string
		doc  []byte
	}
	entries := make([]entry, 0, len(rows))
	for _, r := range rows {
		doc, err := history.EncodeRow(r)
		if err != nil {
			return fmt.Errorf("redis: encode row: %w", err)
		}
		entries = append(entries, entry{day: model.Day(r.Date), name: r.Name, doc: doc})
	}

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, e := range entries {
			day := model.FormatDay(e.day)
			p.HSet(ctx, s.dayKey(day), e.name, e.doc)
			p.ZAdd(ctx, s.daysKey(), redis.Z{Score: float64(e.day.Unix()), Member: day})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: upsert rows: %w", err)
	}
	return nil
}

func (s *Store) RowsByDate(ctx context.Context, date time.Time) ([]model.HistoryRow, error) {
	docs, err := s.client.HGetAll(ctx, s.dayKey(model.FormatDay(model.Day(date)))).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read day: %w", err)
	}
	out := make([]model.HistoryRow, 0, len(docs))
	for _, doc := range docs {
		r, err := history.DecodeRow([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.HistoryRow) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	days, err := s.client.ZRange(ctx, s.daysKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read days: %w", err)
	}
	out := make([]time.Time, 0, len(days))
	for _, day := range days {
		d, err := model.ParseDay(day)
		if err != nil {
			return nil, history.CorruptRow(err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) RowsByName(ctx context.Context, name string) ([]model.HistoryRow, error) {
	days, err := s.client.ZRange(ctx, s.daysKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read days: %w", err)
	}
	if len(days) == 0 {
		return []model.HistoryRow{}, nil
	}

	cmds := make([]*redis.StringCmd, len(days))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, day := range days {
			cmds[i] = p.HGet(ctx, s.dayKey(day), name)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: read student: %w", err)
	}

	out := make([]model.HistoryRow, 0, len(days))
	for _, cmd := range cmds {
		doc, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: read student: %w", err)
		}
		r, err := history.DecodeRow([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Reset deletes every key under the store prefix.
func (s *Store) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
