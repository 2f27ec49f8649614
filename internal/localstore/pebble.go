package localstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/cockroachdb/pebble"
)

const defaultPebbleDir = "./data/comanda"

// PebbleStore is the default driver: an embedded store on local disk.
type PebbleStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	dir    string
	logger aqm.Logger
}

func NewPebbleStore(config *aqm.Config, logger aqm.Logger) *PebbleStore {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	dir := defaultPebbleDir
	if config != nil {
		if v, _ := config.GetString("localstore.pebble.dir"); v != "" {
			dir = v
		}
	}
	return &PebbleStore{dir: dir, logger: logger}
}

func (p *PebbleStore) Start(ctx context.Context) error {
	db, err := pebble.Open(filepath.Clean(p.dir), &pebble.Options{})
	if err != nil {
		return fmt.Errorf("pebble open: %w", err)
	}
	p.mu.Lock()
	p.db = db
	p.mu.Unlock()
	p.logger.Info("local store opened", "driver", DriverPebble, "dir", p.dir)
	return nil
}

func (p *PebbleStore) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return fmt.Errorf("pebble close: %w", err)
	}
	return nil
}

func (p *PebbleStore) Get(ctx context.Context, key string, out interface{}) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return fmt.Errorf("pebble store not started")
	}

	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()

	return decodeValue(v, out)
}

func (p *PebbleStore) Put(ctx context.Context, key string, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return fmt.Errorf("pebble store not started")
	}
	if err := p.db.Set([]byte(key), v, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Delete(ctx context.Context, key string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return fmt.Errorf("pebble store not started")
	}
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (p *PebbleStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, fmt.Errorf("pebble store not started")
	}

	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: []byte(prefix)})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		if !strings.HasPrefix(k, prefix) {
			break
		}
		keys = append(keys, k)
	}
	return keys, nil
}
