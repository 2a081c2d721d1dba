package testutils

import (
	"context"
	"sync"

	"github.com/larkmail/lark/filter"
)

// MemoryRuleStore implements filter.Store in memory.
type MemoryRuleStore struct {
	mu    sync.Mutex
	rules map[string][]filter.Rule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string][]filter.Rule)}
}

func (s *MemoryRuleStore) GetRules(ctx context.Context, accountID string) ([]filter.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]filter.Rule(nil), s.rules[accountID]...), nil
}

func (s *MemoryRuleStore) SetRules(ctx context.Context, accountID string, rules []filter.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[accountID] = append([]filter.Rule(nil), rules...)
	return nil
}
