package history

import (
	"context"
	"sync"

	"github.com/koltyakov/siren/internal/domain"
)

// Memory is an in-process Store.
type Memory struct {
	mu sync.Mutex
	h  domain.History
}

// NewMemory returns a Memory seeded with h.
func NewMemory(h domain.History) *Memory {
	return &Memory{h: h}
}

func (m *Memory) Load(ctx context.Context) (domain.History, error) {
	if err := ctx.Err(); err != nil {
		return domain.History{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h, nil
}

func (m *Memory) Save(ctx context.Context, h domain.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.h = h
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(ctx context.Context, fn func(domain.History) (domain.History, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.h)
	if err != nil {
		return err
	}
	m.h = next
	return nil
}
