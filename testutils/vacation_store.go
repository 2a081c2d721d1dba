package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/larkmail/lark/vacation"
)

// MemoryVacationStore implements vacation.Store in memory.
type MemoryVacationStore struct {
	mu        sync.Mutex
	responses map[string]vacation.Response
}

func NewMemoryVacationStore() *MemoryVacationStore {
	return &MemoryVacationStore{responses: make(map[string]vacation.Response)}
}

func (s *MemoryVacationStore) Get(ctx context.Context, accountID string) (*vacation.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.responses[accountID]
	return &r, nil
}

func (s *MemoryVacationStore) Put(ctx context.Context, accountID string, r *vacation.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[accountID] = *r
	return nil
}

// MemoryOracle implements vacation.Oracle against an injectable clock.
type MemoryOracle struct {
	mu    sync.Mutex
	clock vacation.Clock
	sent  map[string]time.Time
}

func NewMemoryOracle(clock vacation.Clock) *MemoryOracle {
	if clock == nil {
		clock = vacation.SystemClock{}
	}
	return &MemoryOracle{clock: clock, sent: make(map[string]time.Time)}
}

func (o *MemoryOracle) key(accountID, sender string) string {
	return accountID + "\x00" + sender
}

func (o *MemoryOracle) IsResponseAllowed(ctx context.Context, accountID, sender string, window time.Duration) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sentAt, ok := o.sent[o.key(accountID, sender)]
	if !ok {
		return true, nil
	}
	return o.clock.Now().Sub(sentAt) >= window, nil
}

func (o *MemoryOracle) RecordResponseSent(ctx context.Context, accountID, sender string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[o.key(accountID, sender)] = o.clock.Now()
	return nil
}
