package storage

import (
	"context"

	"solana-nft-minter/internal/domain"
)

// MintRecordStore provides access to mint_records storage.
type MintRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if request_id or mint exists.
	Insert(ctx context.Context, r *domain.MintRecord) error

	// GetByRequestID retrieves a record by its request ID. Returns ErrNotFound if not exists.
	GetByRequestID(ctx context.Context, requestID string) (*domain.MintRecord, error)

	// GetByMint retrieves the record for a mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.MintRecord, error)

	// List retrieves records created within [start, end] (inclusive), ordered by created_at ASC.
	List(ctx context.Context, start, end int64) ([]*domain.MintRecord, error)
}

// SubmissionEventStore provides access to submission_events storage.
type SubmissionEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.SubmissionEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.SubmissionEvent) error

	// GetByRequestID retrieves all events of a mint, ordered by tx_index then timestamp ASC.
	GetByRequestID(ctx context.Context, requestID string) ([]*domain.SubmissionEvent, error)
}
