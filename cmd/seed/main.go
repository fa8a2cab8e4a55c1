// Command seed loads the default reward and the menu into the configured store.
// Existing records are never overwritten.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/loyalty-services/configs"
	loyaltyconfig "github.com/avvvet/loyalty-services/internal/loyaltysvc/config"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/seed"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/backend"
)

func main() {
	file := flag.String("file", "seeds/menu.yaml", "seed file")
	flag.Parse()

	config.LoadEnv("seed")

	cfg, err := loyaltyconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fh, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Unable to open seed file: %v", err)
	}
	defer fh.Close()

	f, err := seed.Load(fh)
	if err != nil {
		log.Fatalf("Invalid seed file %s: %v", *file, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer st.Close(ctx)

	rep, err := seed.Apply(ctx, st, f, time.Now().UTC())
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	fmt.Printf("reward created: %t\n", rep.RewardCreated)
	fmt.Printf("sections created: %d, items created: %d, skipped: %d\n",
		rep.SectionsCreated, rep.ItemsCreated, rep.Skipped)
}
