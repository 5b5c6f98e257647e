package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"shophours/internal/hours"
	"shophours/internal/metrics"

	"github.com/rs/zerolog"
)

// StatusReader evaluates a shop's current status.
type StatusReader interface {
	GetStatus(ctx context.Context, shopID string) (hours.ShopStatus, error)
}

// ShopLister enumerates shops with a stored schedule.
type ShopLister interface {
	ListShopIDs(ctx context.Context) ([]string, error)
}

// Config holds configuration for the refresher.
type Config struct {
	// Interval is how often every shop is re-evaluated.
	// Default: 30 seconds.
	Interval time.Duration

	// Shops limits polling to these IDs. Empty means every listed shop.
	Shops []string

	// MaxConcurrent limits parallel evaluations.
	// Default: 8.
	MaxConcurrent int
}

// Transition reports a shop whose state differs from the previous poll.
// From is empty on the first observation.
type Transition struct {
	ShopID string
	From   hours.StatusState
	To     hours.StatusState
	Status hours.ShopStatus
}

// Refresher polls shop statuses so that schedule boundaries (opening,
// breaks, closing, override expiry) are noticed without a request.
type Refresher struct {
	config   Config
	statuses StatusReader
	lister   ShopLister
	logger   *zerolog.Logger
	onChange func(Transition)

	stateMu sync.Mutex
	last    map[string]hours.StatusState

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRefresher creates a refresher. lister may be nil when cfg.Shops is set.
func NewRefresher(cfg Config, statuses StatusReader, lister ShopLister, logger *zerolog.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Refresher{
		config:   cfg,
		statuses: statuses,
		lister:   lister,
		logger:   logger,
		last:     make(map[string]hours.StatusState),
		stopCh:   make(chan struct{}),
	}
}

// OnChange registers a callback invoked for every transition.
func (r *Refresher) OnChange(fn func(Transition)) *Refresher {
	r.onChange = fn
	return r
}

// Start begins the polling loop.
func (r *Refresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop()

	r.logger.Info().Dur("interval", r.config.Interval).Msg("Status refresher started")
}

// Stop gracefully stops the refresher.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()

	r.logger.Info().Msg("Status refresher stopped")
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.CheckNow(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.CheckNow(ctx)
		}
	}
}

// CheckNow evaluates every watched shop once and returns the transitions
// observed, sorted by shop ID.
func (r *Refresher) CheckNow(ctx context.Context) []Transition {
	shops, err := r.shopIDs(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list shops")
		return nil
	}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions []Transition
		sem         = make(chan struct{}, r.config.MaxConcurrent)
	)
	for _, id := range shops {
		wg.Add(1)
		sem <- struct{}{}
		go func(shopID string) {
			defer wg.Done()
			defer func() { <-sem }()

			if t, ok := r.check(ctx, shopID); ok {
				mu.Lock()
				transitions = append(transitions, t)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	sort.Slice(transitions, func(i, j int) bool { return transitions[i].ShopID < transitions[j].ShopID })
	for _, t := range transitions {
		if r.onChange != nil {
			r.onChange(t)
		}
	}
	return transitions
}

func (r *Refresher) check(ctx context.Context, shopID string) (Transition, bool) {
	st, err := r.statuses.GetStatus(ctx, shopID)
	if err != nil {
		r.logger.Warn().Err(err).Str("shop_id", shopID).Msg("Status unknown")
		return Transition{}, false
	}
	metrics.SetShopOpen(shopID, st.IsOpen)

	r.stateMu.Lock()
	prev, seen := r.last[shopID]
	r.last[shopID] = st.State
	r.stateMu.Unlock()

	if seen && prev == st.State {
		return Transition{}, false
	}

	r.logger.Info().
		Str("shop_id", shopID).
		Str("from", string(prev)).
		Str("to", string(st.State)).
		Str("message", st.Message).
		Msg("Shop status changed")
	return Transition{ShopID: shopID, From: prev, To: st.State, Status: st}, true
}

// LastState returns the state seen at the last poll.
func (r *Refresher) LastState(shopID string) (hours.StatusState, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	s, ok := r.last[shopID]
	return s, ok
}

func (r *Refresher) shopIDs(ctx context.Context) ([]string, error) {
	if len(r.config.Shops) > 0 {
		return r.config.Shops, nil
	}
	if r.lister == nil {
		return nil, nil
	}
	return r.lister.ListShopIDs(ctx)
}
