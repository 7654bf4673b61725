// Package persistence selects and constructs the configured attribute
// release policy repository backend.
package persistence

import (
	"fmt"
	"log"

	"github.com/internet2/shibboleth-go-components/internal/arp"
	persistence_file "github.com/internet2/shibboleth-go-components/internal/arp/persistence/file"
	persistence_inmemory "github.com/internet2/shibboleth-go-components/internal/arp/persistence/inmemory"
	persistence_mongodb "github.com/internet2/shibboleth-go-components/internal/arp/persistence/mongodb"
	persistence_postgresql "github.com/internet2/shibboleth-go-components/internal/arp/persistence/postgresql"
	"github.com/internet2/shibboleth-go-components/internal/common"
)

// Factory constructs a repository backend from the loaded configuration.
type Factory func(cfg *common.Config) (arp.Repository, error)

// backends maps the configuration discriminant string to the backend
// constructor. All supported kinds are registered here explicitly; there is
// no reflective lookup.
var backends = map[string]Factory{
	"inmemory": func(*common.Config) (arp.Repository, error) {
		return persistence_inmemory.NewInMemoryArpRepository(), nil
	},
	"file": func(cfg *common.Config) (arp.Repository, error) {
		return persistence_file.NewFileArpRepository(cfg.Arp.Directory)
	},
	"postgresql": func(cfg *common.Config) (arp.Repository, error) {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.DBName,
		)
		return persistence_postgresql.NewPostgreSQLArpRepository(dsn, cfg.Postgres.MaxOpenConnections, cfg.Postgres.MaxIdleConnections)
	},
	"mongodb": func(cfg *common.Config) (arp.Repository, error) {
		return persistence_mongodb.NewMongoArpRepository(cfg.Mongo.URI, cfg.Mongo.Database)
	},
}

// NewRepository builds the repository named by cfg.Arp.Backend. An unknown
// backend kind is a configuration error.
func NewRepository(cfg *common.Config) (arp.Repository, error) {
	factory, ok := backends[cfg.Arp.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown arp backend %q", cfg.Arp.Backend)
	}
	log.Printf("🗄️  Using %q ARP repository backend", cfg.Arp.Backend)
	return factory(cfg)
}
