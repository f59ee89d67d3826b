package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists ledger entries to PostgreSQL. The
// (subject_id, sequence_num) unique constraint is the multi-instance guard
// against concurrent appends computing the same sequence number.
//
// event_data, amount and the hashes are stored as text: the digest covers the
// exact bytes written at append time, and text columns return them unchanged.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

const entryColumns = `id, subject_id, sequence_num, previous_hash, current_hash,
	event_type, event_data, amount, performed_by, timestamp, ip_address`

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, e *Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries
		   (id, subject_id, sequence_num, previous_hash, current_hash,
		    event_type, event_data, amount, performed_by, timestamp, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.SubjectID, e.SequenceNum, e.PreviousHash, e.CurrentHash,
		e.EventType, string(e.EventData), e.Amount, e.PerformedBy, e.Timestamp, e.IPAddress,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			s.logger.Debug("sequence conflict on insert",
				zap.String("subject_id", e.SubjectID),
				zap.Int("sequence", e.SequenceNum),
			)
			return ErrDuplicateSequence
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Last implements Store.
func (s *PostgresStore) Last(ctx context.Context, subjectID string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries WHERE subject_id = $1
		 ORDER BY sequence_num DESC LIMIT 1`, subjectID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chain tail for %s: %w", subjectID, err)
	}
	return e, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, subjectID string) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries WHERE subject_id = $1
		 ORDER BY sequence_num ASC`, subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries for %s: %w", subjectID, err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Subjects implements Store.
func (s *PostgresStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT subject_id FROM ledger_entries ORDER BY subject_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject id: %w", err)
		}
		subjects = append(subjects, id)
	}
	return subjects, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	var eventData string
	if err := row.Scan(
		&e.ID, &e.SubjectID, &e.SequenceNum, &e.PreviousHash, &e.CurrentHash,
		&e.EventType, &eventData, &e.Amount, &e.PerformedBy, &e.Timestamp, &e.IPAddress,
	); err != nil {
		return nil, err
	}
	e.EventData = []byte(eventData)
	return e, nil
}
