package memory

import (
	"context"
	"sort"
	"sync"

	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/storage"
)

// MintRecordStore is an in-memory implementation of storage.MintRecordStore.
type MintRecordStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.MintRecord // keyed by request_id
	byMint map[string]string             // mint -> request_id
}

// NewMintRecordStore creates a new in-memory mint record store.
func NewMintRecordStore() *MintRecordStore {
	return &MintRecordStore{
		data:   make(map[string]*domain.MintRecord),
		byMint: make(map[string]string),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if request_id or mint exists.
func (s *MintRecordStore) Insert(_ context.Context, r *domain.MintRecord) error {
	if r == nil || r.RequestID == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RequestID]; exists {
		return storage.DuplicateKey("request_id", r.RequestID)
	}
	if _, exists := s.byMint[r.Mint]; exists {
		return storage.DuplicateKey("mint", r.Mint)
	}

	s.data[r.RequestID] = copyRecord(r)
	s.byMint[r.Mint] = r.RequestID
	return nil
}

// GetByRequestID retrieves a record by its request ID. Returns ErrNotFound if not exists.
func (s *MintRecordStore) GetByRequestID(_ context.Context, requestID string) (*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[requestID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByMint retrieves the record for a mint address. Returns ErrNotFound if not exists.
func (s *MintRecordStore) GetByMint(_ context.Context, mint string) (*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(s.data[id]), nil
}

// List retrieves records created within [start, end] (inclusive), ordered by created_at ASC.
func (s *MintRecordStore) List(_ context.Context, start, end int64) ([]*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MintRecord
	for _, r := range s.data {
		if r.CreatedAt >= start && r.CreatedAt <= end {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RequestID < result[j].RequestID
	})

	return result, nil
}

// copyRecord prevents callers from mutating stored state through shared slices.
func copyRecord(r *domain.MintRecord) *domain.MintRecord {
	c := *r
	c.Signatures = append([]string(nil), r.Signatures...)
	return &c
}

// Verify interface compliance at compile time.
var _ storage.MintRecordStore = (*MintRecordStore)(nil)
