// Command setpin provisions the admin PIN:
//
//	setpin <new-pin>
//
// It reads ADMIN_HMAC_KEY and the store settings from the environment (or .env).
// Generate a key once with: openssl rand -hex 32
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/loyalty-services/configs"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/auth"
	loyaltyconfig "github.com/avvvet/loyalty-services/internal/loyaltysvc/config"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/backend"
)

func main() {
	log.SetLevel(log.WarnLevel)
	config.LoadEnv("setpin")

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: setpin <new-pin>")
		os.Exit(2)
	}

	cfg, err := loyaltyconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.StoreBackend == loyaltyconfig.BackendMemory {
		log.Fatal("setpin needs a persistent store, STORE_BACKEND=memory would discard the PIN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer st.Close(ctx)

	admin, err := auth.Provision(ctx, st.AdminConfig(), []byte(cfg.AdminHmacKey), os.Args[1], time.Now().UTC())
	if err != nil {
		log.Fatalf("PIN not updated: %v", err)
	}

	fmt.Println("admin PIN updated")
	fmt.Printf("  digits : %d\n", admin.PinLength)
	fmt.Printf("  hmac   : %s...\n", admin.PinHmac[:16])
	fmt.Println("make sure the loyalty service runs with the same ADMIN_HMAC_KEY")
}
