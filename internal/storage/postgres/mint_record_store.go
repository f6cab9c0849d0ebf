package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/observability"
	"solana-nft-minter/internal/storage"
)

// MintRecordStore implements storage.MintRecordStore using PostgreSQL.
type MintRecordStore struct {
	pool *Pool
}

// NewMintRecordStore creates a new MintRecordStore.
func NewMintRecordStore(pool *Pool) *MintRecordStore {
	return &MintRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MintRecordStore = (*MintRecordStore)(nil)

const mintRecordColumns = `
	request_id, mode, cluster, payer, owner, mint, holder,
	metadata, master_edition, name, symbol, uri, signatures, created_at
`

// Insert adds a new record. Returns ErrDuplicateKey if request_id or mint exists.
func (s *MintRecordStore) Insert(ctx context.Context, r *domain.MintRecord) (err error) {
	if r == nil || r.RequestID == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert", time.Now(), &err)

	query := `
		INSERT INTO mint_records (` + mintRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	signatures := r.Signatures
	if signatures == nil {
		signatures = []string{}
	}

	_, err = s.pool.Exec(ctx, query,
		r.RequestID,
		string(r.Mode),
		r.Cluster,
		r.Payer,
		r.Owner,
		r.Mint,
		r.Holder,
		r.Metadata,
		r.MasterEdition,
		r.Name,
		r.Symbol,
		r.URI,
		signatures,
		r.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "mint_records_mint_key" {
				return storage.DuplicateKey("mint", r.Mint)
			}
			return storage.DuplicateKey("request_id", r.RequestID)
		}
		return fmt.Errorf("insert mint record: %w", err)
	}
	return nil
}

// GetByRequestID retrieves a record by its request ID. Returns ErrNotFound if not exists.
func (s *MintRecordStore) GetByRequestID(ctx context.Context, requestID string) (r *domain.MintRecord, err error) {
	defer observe("get_by_request_id", time.Now(), &err)

	query := `SELECT ` + mintRecordColumns + ` FROM mint_records WHERE request_id = $1`

	r, err = scanMintRecord(s.pool.QueryRow(ctx, query, requestID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint record by request id: %w", err)
	}
	return r, nil
}

// GetByMint retrieves the record for a mint address. Returns ErrNotFound if not exists.
func (s *MintRecordStore) GetByMint(ctx context.Context, mint string) (r *domain.MintRecord, err error) {
	defer observe("get_by_mint", time.Now(), &err)

	query := `SELECT ` + mintRecordColumns + ` FROM mint_records WHERE mint = $1`

	r, err = scanMintRecord(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint record by mint: %w", err)
	}
	return r, nil
}

// List retrieves records created within [start, end] (inclusive), ordered by created_at ASC.
func (s *MintRecordStore) List(ctx context.Context, start, end int64) (records []*domain.MintRecord, err error) {
	defer observe("list", time.Now(), &err)

	query := `
		SELECT ` + mintRecordColumns + `
		FROM mint_records
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, request_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("list mint records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanMintRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mint record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mint records: %w", err)
	}
	return records, nil
}

func scanMintRecord(row pgx.Row) (*domain.MintRecord, error) {
	var r domain.MintRecord
	var mode string
	err := row.Scan(
		&r.RequestID,
		&mode,
		&r.Cluster,
		&r.Payer,
		&r.Owner,
		&r.Mint,
		&r.Holder,
		&r.Metadata,
		&r.MasterEdition,
		&r.Name,
		&r.Symbol,
		&r.URI,
		&r.Signatures,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Mode = domain.MintMode(mode)
	return &r, nil
}

// observe records query latency for operation; not-found lookups are not errors.
func observe(operation string, start time.Time, err *error) {
	failed := *err
	if errors.Is(failed, storage.ErrNotFound) {
		failed = nil
	}
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), failed)
}
