package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/handsomefox/tv-discover/internal/events"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/store"
)

// Key is the fixed namespace the watchlist is persisted under.
const Key = "tvdiscover.watchlist"

type Store interface {
	List(ctx context.Context) ([]Item, error)
	// Add inserts item unless its show id is already present.
	Add(ctx context.Context, item Item) (added bool, err error)
	Remove(ctx context.Context, id int64) (removed bool, err error)
	// Subscribe registers onChange to run after every change, local or external.
	Subscribe(onChange func()) (unsubscribe func())
}

// KV is the durable backend of Persistent.
type KV interface {
	Get(ctx context.Context, key string) (store.Entry, error)
	Put(ctx context.Context, key string, value []byte) (int64, error)
	Revision(ctx context.Context, key string) (int64, error)
}

type Persistent struct {
	kv     KV
	logger *slog.Logger
	bus    *events.Broadcaster[struct{}]

	mu sync.Mutex
	// notified is the last revision subscribers were told about. Only Sync and
	// local writes advance it; reads never do.
	notified int64
}

var _ Store = (*Persistent)(nil)

func NewPersistent(kv KV, log *slog.Logger) *Persistent {
	if log == nil {
		log = slog.Default()
	}
	return &Persistent{
		kv:     kv,
		logger: log.With(slog.String("component", "watchlist")),
		bus:    events.NewBroadcaster[struct{}](),
	}
}

func (p *Persistent) List(ctx context.Context) ([]Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	items, err := p.load(ctx)
	return items, err
}

func (p *Persistent) Add(ctx context.Context, item Item) (bool, error) {
	if item.ID <= 0 {
		return false, fmt.Errorf("watchlist add: invalid show id %d", item.ID)
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	p.mu.Lock()
	items, err := p.load(ctx)
	if err != nil {
		p.mu.Unlock()
		return false, err
	}
	if containsID(items, item.ID) {
		p.mu.Unlock()
		return false, nil
	}
	err = p.save(ctx, append(items, item))
	p.mu.Unlock()
	if err != nil {
		return false, err
	}

	p.bus.Publish(struct{}{})
	return true, nil
}

func (p *Persistent) Remove(ctx context.Context, id int64) (bool, error) {
	p.mu.Lock()
	items, err := p.load(ctx)
	if err != nil {
		p.mu.Unlock()
		return false, err
	}
	if !containsID(items, id) {
		p.mu.Unlock()
		return false, nil
	}
	err = p.save(ctx, slices.DeleteFunc(items, func(it Item) bool { return it.ID == id }))
	p.mu.Unlock()
	if err != nil {
		return false, err
	}

	p.bus.Publish(struct{}{})
	return true, nil
}

func (p *Persistent) Subscribe(onChange func()) func() {
	return p.bus.Subscribe(func(struct{}) { onChange() })
}

// Watch polls the stored revision and notifies subscribers when another
// process changed the watchlist. It returns when ctx is done.
func (p *Persistent) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("watchlist watch: interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := p.Sync(ctx)
			if err != nil {
				p.logger.WarnContext(ctx, "watchlist sync failed", logger.Error(err))
				continue
			}
			if changed {
				p.logger.DebugContext(ctx, "watchlist changed externally")
			}
		}
	}
}

// Sync checks the stored revision once and notifies subscribers if it moved
// since they were last notified.
func (p *Persistent) Sync(ctx context.Context) (bool, error) {
	rev, err := p.kv.Revision(ctx, Key)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	changed := rev != p.notified
	p.notified = rev
	p.mu.Unlock()

	if changed {
		p.bus.Publish(struct{}{})
	}
	return changed, nil
}

// load must be called with mu held. A stored value that does not decode as a
// list of items reads as an empty watchlist.
func (p *Persistent) load(ctx context.Context) ([]Item, error) {
	e, err := p.kv.Get(ctx, Key)
	if errors.Is(err, store.ErrNotFound) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watchlist load: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(e.Value, &items); err != nil {
		p.logger.WarnContext(ctx, "discarding unreadable watchlist", logger.Error(err))
		return []Item{}, nil
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// save must be called with mu held.
func (p *Persistent) save(ctx context.Context, items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("watchlist save: %w", err)
	}
	rev, err := p.kv.Put(ctx, Key, data)
	if err != nil {
		return fmt.Errorf("watchlist save: %w", err)
	}
	p.notified = rev
	return nil
}

func containsID(items []Item, id int64) bool {
	return slices.ContainsFunc(items, func(it Item) bool { return it.ID == id })
}
