package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/observability"
	"solana-nft-minter/internal/storage"
)

// SubmissionEventStore implements storage.SubmissionEventStore using ClickHouse.
type SubmissionEventStore struct {
	conn *Conn
}

// NewSubmissionEventStore creates a new SubmissionEventStore.
func NewSubmissionEventStore(conn *Conn) *SubmissionEventStore {
	return &SubmissionEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SubmissionEventStore = (*SubmissionEventStore)(nil)

const insertSubmissionEvents = `
	INSERT INTO submission_events (
		event_id, request_id, mint, tx_index, attempt, state, signature, reason, timestamp_ms
	)
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *SubmissionEventStore) Insert(ctx context.Context, e *domain.SubmissionEvent) error {
	return s.InsertBulk(ctx, []*domain.SubmissionEvent{e})
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *SubmissionEventStore) InsertBulk(ctx context.Context, events []*domain.SubmissionEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer observe("insert", time.Now(), &err)

	// MergeTree does not enforce uniqueness: check intra-batch and stored keys first
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || e.RequestID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, insertSubmissionEvents)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID,
			e.RequestID,
			e.Mint,
			int32(e.TxIndex),
			int32(e.Attempt),
			string(e.State),
			e.Signature,
			e.Reason,
			e.Timestamp,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRequestID retrieves all events of a mint, ordered by tx_index then timestamp ASC.
func (s *SubmissionEventStore) GetByRequestID(ctx context.Context, requestID string) (events []*domain.SubmissionEvent, err error) {
	defer observe("get_by_request_id", time.Now(), &err)

	query := `
		SELECT event_id, request_id, mint, tx_index, attempt, state, signature, reason, timestamp_ms
		FROM submission_events
		WHERE request_id = ?
		ORDER BY tx_index ASC, timestamp_ms ASC, attempt ASC
	`

	rows, err := s.conn.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("query by request id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                domain.SubmissionEvent
			txIndex, attempt int32
			state            string
		)
		if err := rows.Scan(
			&e.EventID, &e.RequestID, &e.Mint, &txIndex, &attempt,
			&state, &e.Signature, &e.Reason, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan submission event: %w", err)
		}
		e.TxIndex = int(txIndex)
		e.Attempt = int(attempt)
		e.State = domain.SubmissionState(state)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission events: %w", err)
	}
	return events, nil
}

// Publish stores e; it lets the store serve as the orchestrator's event sink.
func (s *SubmissionEventStore) Publish(ctx context.Context, e domain.SubmissionEvent) error {
	return s.Insert(ctx, &e)
}

func (s *SubmissionEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM submission_events WHERE event_id = ?`, eventID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func observe(operation string, start time.Time, err *error) {
	failed := *err
	if errors.Is(failed, storage.ErrDuplicateKey) || errors.Is(failed, storage.ErrInvalidInput) {
		failed = nil
	}
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), failed)
}
