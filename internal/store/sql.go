package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
)

// SQLStore keeps profiles in SQLite or PostgreSQL through ent's SQL driver.
type SQLStore struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
}

var _ ProfileStore = (*SQLStore)(nil)

// DB returns the underlying *sql.DB for raw queries.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.drv.Close()
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *SQLStore) Load(ctx context.Context, learnerID string) (*learner.Profile, error) {
	query, args := s.builder().
		Select("revision", "format", "data").
		From(s.builder().Table(profilesTable)).
		Where(entsql.EQ("learner_id", learnerID)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query profile %q: %w", learnerID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query profile %q: %w", learnerID, err)
		}
		return nil, errs.NotFound("learner %q", learnerID)
	}

	var (
		revision int64
		format   string
		data     []byte
	)
	if err := rows.Scan(&revision, &format, &data); err != nil {
		return nil, fmt.Errorf("scan profile %q: %w", learnerID, err)
	}
	if err := checkFormat(format); err != nil {
		return nil, fmt.Errorf("load profile %q: %w", learnerID, err)
	}
	p, err := decodeProfile(data, revision)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", learnerID, err)
	}
	return p, nil
}

func (s *SQLStore) Save(ctx context.Context, p *learner.Profile, events ...Event) error {
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := time.Now().UTC()
	if err := s.saveTx(ctx, tx, p, data, now); err != nil {
		tx.Rollback()
		return err
	}
	for _, e := range events {
		if err := s.appendEvent(ctx, tx, p.LearnerID, e, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile %q: %w", p.LearnerID, err)
	}

	p.Revision++
	return nil
}

func (s *SQLStore) saveTx(ctx context.Context, tx dialect.Tx, p *learner.Profile, data []byte, now time.Time) error {
	b := s.builder()

	if p.Revision == 0 {
		// A concurrent creator may win the primary key; that is a stale
		// write, not a failure.
		query, args := b.Insert(profilesTable).
			Columns("learner_id", "revision", "format", "data", "created_at", "updated_at").
			Values(p.LearnerID, int64(1), FormatVersion, string(data), now, now).
			OnConflict(entsql.ConflictColumns("learner_id"), entsql.DoNothing()).
			Query()
		var res sql.Result
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			return fmt.Errorf("insert profile %q: %w", p.LearnerID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert profile %q: %w", p.LearnerID, err)
		}
		if n == 0 {
			return fmt.Errorf("create profile %q: %w", p.LearnerID, ErrStale)
		}
		return nil
	}

	query, args := b.Update(profilesTable).
		Set("revision", p.Revision+1).
		Set("format", FormatVersion).
		Set("data", string(data)).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("learner_id", p.LearnerID),
			entsql.EQ("revision", p.Revision),
		)).
		Query()
	var res sql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("update profile %q: %w", p.LearnerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile %q: %w", p.LearnerID, err)
	}
	if n == 0 {
		return fmt.Errorf("update profile %q at revision %d: %w", p.LearnerID, p.Revision, ErrStale)
	}
	return nil
}

func (s *SQLStore) appendEvent(ctx context.Context, tx dialect.Tx, learnerID string, e Event, now time.Time) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = now
	}
	var data any
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", e.Kind, err)
		}
		data = string(b)
	}

	query, args := s.builder().Insert(eventsTable).
		Columns("learner_id", "kind", "topic", "data", "created_at").
		Values(learnerID, e.Kind, e.Topic, data, ts.UTC()).
		Query()
	var res sql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("append %s event: %w", e.Kind, err)
	}
	return nil
}

func (s *SQLStore) Events(ctx context.Context, learnerID string, opts QueryOpts) ([]Event, error) {
	b := s.builder()
	sel := b.Select("id", "kind", "topic", "data", "created_at").
		From(b.Table(eventsTable)).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.GT("id", opts.After),
		)).
		OrderBy(entsql.Desc("id"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e     = Event{LearnerID: learnerID}
			topic sql.NullString
			data  []byte
		)
		if err := rows.Scan(&e.Sequence, &e.Kind, &topic, &data, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Topic = topic.String
		e.Timestamp = e.Timestamp.UTC()
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event %d: %w", e.Sequence, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	b := s.builder()
	query, args := b.Select("learner_id").
		From(b.Table(profilesTable)).
		OrderBy("learner_id").
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan learner id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Collation order differs between backends; callers get byte order.
	sort.Strings(ids)
	return ids, nil
}
