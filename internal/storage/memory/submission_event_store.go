package memory

import (
	"context"
	"sort"
	"sync"

	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/storage"
)

// SubmissionEventStore is an in-memory implementation of storage.SubmissionEventStore.
type SubmissionEventStore struct {
	mu     sync.RWMutex
	events []*domain.SubmissionEvent
	ids    map[string]struct{} // event_id set
}

// NewSubmissionEventStore creates a new in-memory submission event store.
func NewSubmissionEventStore() *SubmissionEventStore {
	return &SubmissionEventStore{
		ids: make(map[string]struct{}),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *SubmissionEventStore) Insert(_ context.Context, e *domain.SubmissionEvent) error {
	if e == nil || e.EventID == "" || e.RequestID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	s.ids[e.EventID] = struct{}{}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *SubmissionEventStore) InsertBulk(_ context.Context, events []*domain.SubmissionEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching state
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || e.RequestID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	for _, e := range events {
		eventCopy := *e
		s.events = append(s.events, &eventCopy)
		s.ids[e.EventID] = struct{}{}
	}
	return nil
}

// GetByRequestID retrieves all events of a mint, ordered by tx_index then timestamp ASC.
// Events with equal keys keep their insertion order.
func (s *SubmissionEventStore) GetByRequestID(_ context.Context, requestID string) ([]*domain.SubmissionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SubmissionEvent
	for _, e := range s.events {
		if e.RequestID == requestID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TxIndex != result[j].TxIndex {
			return result[i].TxIndex < result[j].TxIndex
		}
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SubmissionEventStore = (*SubmissionEventStore)(nil)

// Publish stores e; it lets the store serve as the orchestrator's event sink.
func (s *SubmissionEventStore) Publish(ctx context.Context, e domain.SubmissionEvent) error {
	return s.Insert(ctx, &e)
}
