package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryAnswerCache is an in-process AnswerCache used in tests and
// single-node development setups without Redis.
type MemoryAnswerCache struct {
	mu      sync.Mutex
	answers map[string]map[string]string
	flags   map[string]map[string]struct{}
}

// NewMemoryAnswerCache creates an empty in-memory answer cache.
func NewMemoryAnswerCache() *MemoryAnswerCache {
	return &MemoryAnswerCache{
		answers: make(map[string]map[string]string),
		flags:   make(map[string]map[string]struct{}),
	}
}

func entryKey(examID string, candidateID int) string {
	return fmt.Sprintf("%d:%s", candidateID, examID)
}

func (c *MemoryAnswerCache) SaveAnswer(_ context.Context, examID string, candidateID int, questionID, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(examID, candidateID)
	if c.answers[key] == nil {
		c.answers[key] = make(map[string]string)
	}
	c.answers[key][questionID] = answer
	return nil
}

func (c *MemoryAnswerCache) Load(_ context.Context, examID string, candidateID int) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string)
	for q, a := range c.answers[entryKey(examID, candidateID)] {
		out[q] = a
	}
	return out, nil
}

func (c *MemoryAnswerCache) SetFlag(_ context.Context, examID string, candidateID int, questionID string, flagged bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(examID, candidateID)
	if flagged {
		if c.flags[key] == nil {
			c.flags[key] = make(map[string]struct{})
		}
		c.flags[key][questionID] = struct{}{}
		return nil
	}
	delete(c.flags[key], questionID)
	return nil
}

func (c *MemoryAnswerCache) Flags(_ context.Context, examID string, candidateID int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for q := range c.flags[entryKey(examID, candidateID)] {
		out = append(out, q)
	}
	return out, nil
}

func (c *MemoryAnswerCache) Clear(_ context.Context, examID string, candidateID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(examID, candidateID)
	delete(c.answers, key)
	delete(c.flags, key)
	return nil
}
