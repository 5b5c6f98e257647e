package override

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shophours/internal/events"
	"shophours/internal/hours"
	"shophours/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExpiryActor is recorded as ClearedBy when an override lapses.
const ExpiryActor = "expiry"

// Store persists the latest override record of each shop.
type Store interface {
	// LoadOverride returns nil, nil when the shop never had an override.
	LoadOverride(ctx context.Context, shopID string) (*hours.Override, error)
	SaveOverride(ctx context.Context, o hours.Override) error
}

// Manager keeps the manual override of every shop. Writes for one shop
// are serialised; reads use an atomic snapshot and take no lock once
// the shop has been loaded.
type Manager struct {
	store  Store
	bus    *events.Bus
	logger *zerolog.Logger
	shops  sync.Map // shopID -> *slot
}

type slot struct {
	mu      sync.Mutex
	loaded  atomic.Bool
	current atomic.Pointer[hours.Override]
}

// NewManager creates a manager. store and bus may be nil.
func NewManager(store Store, bus *events.Bus, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{store: store, bus: bus, logger: logger}
}

func (m *Manager) slot(shopID string) *slot {
	if s, ok := m.shops.Load(shopID); ok {
		return s.(*slot)
	}
	s, _ := m.shops.LoadOrStore(shopID, &slot{})
	return s.(*slot)
}

// hydrateLocked loads the stored override once. Caller holds s.mu.
func (m *Manager) hydrateLocked(ctx context.Context, shopID string, s *slot) error {
	if s.loaded.Load() {
		return nil
	}
	if m.store != nil {
		o, err := m.store.LoadOverride(ctx, shopID)
		if err != nil {
			return fmt.Errorf("load override for %s: %w", shopID, err)
		}
		s.current.Store(o)
	}
	s.loaded.Store(true)
	return nil
}

func (m *Manager) ensureLoaded(ctx context.Context, shopID string) (*slot, error) {
	s := m.slot(shopID)
	if s.loaded.Load() {
		return s, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := m.hydrateLocked(ctx, shopID, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Set installs a new active override, replacing any previous one.
// expiresAt may be nil for an override that lasts until cleared.
func (m *Manager) Set(ctx context.Context, shopID string, isForcedOpen bool, reason, actor string, now time.Time, expiresAt *time.Time) (hours.Override, error) {
	s := m.slot(shopID)
	s.mu.Lock()
	if err := m.hydrateLocked(ctx, shopID, s); err != nil {
		s.mu.Unlock()
		return hours.Override{}, err
	}

	o := hours.Override{
		ID:           uuid.NewString(),
		ShopID:       shopID,
		IsForcedOpen: isForcedOpen,
		Reason:       reason,
		Actor:        actor,
		SetAt:        now,
		Active:       true,
		ExpiresAt:    expiresAt,
	}
	if err := m.save(ctx, o); err != nil {
		s.mu.Unlock()
		return hours.Override{}, err
	}
	s.current.Store(&o)
	s.mu.Unlock()

	metrics.IncOverrideChange("set")
	m.logger.Info().
		Str("shop_id", shopID).
		Bool("forced_open", isForcedOpen).
		Str("actor", actor).
		Msg("override set")
	m.publish(events.OverrideSet, o, actor, now)
	return o, nil
}

// Clear deactivates the active override. Clearing a shop without one
// is a no-op and returns nil, nil.
func (m *Manager) Clear(ctx context.Context, shopID, actor string, now time.Time) (*hours.Override, error) {
	s := m.slot(shopID)
	s.mu.Lock()
	if err := m.hydrateLocked(ctx, shopID, s); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	cur := s.current.Load()
	if cur == nil || !cur.Active {
		s.mu.Unlock()
		return nil, nil
	}

	cleared := deactivate(*cur, actor, now)
	if err := m.save(ctx, cleared); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current.Store(&cleared)
	s.mu.Unlock()

	metrics.IncOverrideChange("clear")
	m.logger.Info().Str("shop_id", shopID).Str("actor", actor).Msg("override cleared")
	m.publish(events.OverrideCleared, cleared, actor, now)
	return &cleared, nil
}

// Active returns a copy of the override in effect at now, or nil. An
// override past its expiry is deactivated on the way out.
func (m *Manager) Active(ctx context.Context, shopID string, now time.Time) (*hours.Override, error) {
	s, err := m.ensureLoaded(ctx, shopID)
	if err != nil {
		return nil, err
	}

	cur := s.current.Load()
	if cur.InEffect(now) {
		o := *cur
		return &o, nil
	}
	if cur.Expired(now) {
		m.expire(ctx, s, cur, now)
	}
	return nil, nil
}

func (m *Manager) expire(ctx context.Context, s *slot, seen *hours.Override, now time.Time) {
	s.mu.Lock()
	if s.current.Load() != seen {
		s.mu.Unlock()
		return
	}
	expired := deactivate(*seen, ExpiryActor, *seen.ExpiresAt)
	if err := m.save(ctx, expired); err != nil {
		s.mu.Unlock()
		m.logger.Error().Err(err).Str("shop_id", seen.ShopID).Msg("failed to persist expired override")
		return
	}
	s.current.Store(&expired)
	s.mu.Unlock()

	metrics.IncOverrideChange("expire")
	m.publish(events.OverrideExpired, expired, ExpiryActor, now)
}

func (m *Manager) save(ctx context.Context, o hours.Override) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.SaveOverride(ctx, o); err != nil {
		return fmt.Errorf("save override for %s: %w", o.ShopID, err)
	}
	return nil
}

func (m *Manager) publish(eventType string, o hours.Override, actor string, now time.Time) {
	if m.bus == nil {
		return
	}
	e, err := events.New(eventType, o.ShopID, actor, o, now)
	if err == nil {
		err = m.bus.Publish(e)
	}
	if err != nil {
		m.logger.Error().Err(err).Str("shop_id", o.ShopID).Str("event", eventType).Msg("failed to publish override event")
	}
}

func deactivate(o hours.Override, actor string, at time.Time) hours.Override {
	o.Active = false
	o.ClearedAt = &at
	o.ClearedBy = actor
	return o
}
