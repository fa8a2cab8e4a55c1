// Package backend opens the store selected by STORE_BACKEND.
package backend

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	mongodb "github.com/avvvet/loyalty-services/internal/db"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/config"
	pgdb "github.com/avvvet/loyalty-services/internal/loyaltysvc/db"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/memstore"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/mongostore"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/pgstore"
)

// Open connects the configured backend and prepares its indexes or schema.
func Open(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		database, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s := mongostore.New(database)
		if err := s.EnsureIndexes(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		log.Infof("mongo store ready (db %s)", database.Name())
		return s, nil

	case config.BackendPostgres:
		pool, err := pgdb.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := pgdb.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("postgres store ready")
		return pgstore.New(pool), nil

	case config.BackendMemory:
		log.Warn("memory store in use, data is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
