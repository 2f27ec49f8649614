package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

// ErrNotFound is returned by Get when a key was never written.
var ErrNotFound = errors.New("key not found")

// Store keeps UI-derived data only: prep records, courier history and
// preferences. Backend entities (orders, clients) are never stored here.
// Values are JSON encoded.
type Store interface {
	Get(ctx context.Context, key string, out interface{}) error
	Put(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

const (
	DriverMemory = "memory"
	DriverPebble = "pebble"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

// Lifecycle is implemented by every driver; aqm.Micro starts and stops them.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Lister enumerates keys by prefix.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Driver is a Store that must be started before use.
type Driver interface {
	Store
	Lister
	Lifecycle
}

// Open builds the driver selected by localstore.driver. The driver is not
// started.
func Open(config *aqm.Config, logger aqm.Logger) (Driver, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	driver := DriverPebble
	if config != nil {
		if v, _ := config.GetString("localstore.driver"); v != "" {
			driver = v
		}
	}

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPebble:
		return NewPebbleStore(config, logger), nil
	case DriverRedis:
		return NewRedisStore(config, logger), nil
	case DriverMongo:
		return NewMongoStore(config, logger), nil
	default:
		return nil, fmt.Errorf("unknown localstore driver %q", driver)
	}
}

func encodeValue(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return b, nil
}

func decodeValue(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}
