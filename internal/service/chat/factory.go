package chat

import (
	"context"
	"fmt"

	"github.com/aura-companion/gateway/internal/config"
)

// New builds the transcript store selected by configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemoryStore(), nil
	case config.DriverSQLite, config.DriverPgx:
		return OpenSQLStore(ctx, cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown transcript driver %q", cfg.Driver)
	}
}
