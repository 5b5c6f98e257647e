package config

import (
	"context"
	"os"
	"reflect"
	"time"

	"github.com/rs/zerolog"
)

// ShopsUpdate is delivered by WatchShops. Changed lists the IDs of shops
// added or modified since the previous load, in file order; on the
// initial load it holds every shop. Removed lists IDs no longer present.
type ShopsUpdate struct {
	Config  *ShopsConfig
	Changed []string
	Removed []string
}

// DiffShops compares two loads of shops.yaml. A change to the defaults
// marks every shop as changed, since each schedule is built on them.
func DiffShops(prev, next *ShopsConfig) (changed, removed []string) {
	if prev == nil || !reflect.DeepEqual(prev.Defaults, next.Defaults) {
		for _, s := range next.Shops {
			changed = append(changed, s.ID)
		}
	} else {
		for _, s := range next.Shops {
			old := prev.GetShopByID(s.ID)
			if old == nil || !reflect.DeepEqual(*old, s) {
				changed = append(changed, s.ID)
			}
		}
	}
	if prev != nil {
		for _, s := range prev.Shops {
			if next.GetShopByID(s.ID) == nil {
				removed = append(removed, s.ID)
			}
		}
	}
	return changed, removed
}

// WatchShops loads shops.yaml, reports it to onUpdate, then polls the
// file's mtime and reports every reload that changes at least one shop.
// An invalid file is skipped and the previous config stays in force.
func WatchShops(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(ShopsUpdate)) error {
	if path == "" {
		path = "configs/shops.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	current, err := LoadShopsConfig(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	changed, _ := DiffShops(nil, current)
	if onUpdate != nil {
		onUpdate(ShopsUpdate{Config: current, Changed: changed})
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil || !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()

				next, err := LoadShopsConfig(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("Ignoring invalid shops config")
					continue
				}
				changed, removed := DiffShops(current, next)
				current = next
				if len(changed) == 0 && len(removed) == 0 {
					logger.Debug().Str("path", path).Msg("Shops config touched without changes")
					continue
				}
				logger.Info().
					Str("path", path).
					Strs("changed", changed).
					Strs("removed", removed).
					Msg("Shops config reloaded")
				if onUpdate != nil {
					onUpdate(ShopsUpdate{Config: next, Changed: changed, Removed: removed})
				}
			}
		}
	}()

	return nil
}
