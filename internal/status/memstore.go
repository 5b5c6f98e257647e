package status

import (
	"context"
	"sync"

	"shophours/internal/hours"
)

// MemoryStore is a ScheduleStore kept in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[string]hours.WeeklySchedule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{schedules: make(map[string]hours.WeeklySchedule)}
}

func (m *MemoryStore) GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.schedules[shopID]
	if !ok {
		return hours.WeeklySchedule{}, hours.ErrScheduleNotFound
	}
	return ws, nil
}

func (m *MemoryStore) SaveSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[shopID] = schedule
	return nil
}

// ListShopIDs returns the shops with a stored schedule.
func (m *MemoryStore) ListShopIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.schedules))
	for id := range m.schedules {
		ids = append(ids, id)
	}
	return ids, nil
}
