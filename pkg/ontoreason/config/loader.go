package config

import (
	"context"
	"fmt"

	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/memjournal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/redisjournal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/sqlite"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
)

// Components holds what the configuration resolves to.
type Components struct {
	Model   *ontology.Model
	Journal journal.Journal // nil when the driver is "none"
}

// Close releases the journal.
func (c *Components) Close() error {
	if c.Journal == nil {
		return nil
	}
	return c.Journal.Close()
}

// Build loads the ontology and opens the journal.
func (c *Config) Build(ctx context.Context) (*Components, error) {
	comp := &Components{}

	// Load ontology
	var err error
	if c.Ontology.Path != "" {
		comp.Model, err = ontology.LoadFile(c.Ontology.Path)
	} else {
		comp.Model, err = ontology.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load ontology: %w", err)
	}

	// Open journal
	comp.Journal, err = c.Journal.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return comp, nil
}

// Open creates the configured journal. It returns nil for driver "none".
func (jc JournalConfig) Open(ctx context.Context) (journal.Journal, error) {
	switch jc.Driver {
	case DriverNone:
		return nil, nil
	case DriverMemory, "":
		return memjournal.New(jc.Retention), nil
	case DriverSQLite:
		return sqlite.OpenSQLite(ctx, jc.DSN, jc.Retention)
	case DriverRedis:
		j, err := redisjournal.Open(ctx, jc.DSN,
			redisjournal.WithPrefix(jc.Prefix),
			redisjournal.WithRetention(jc.Retention),
		)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", jc.Driver)
	}
}
