package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"refassist-backend/lib/configutil"
	"refassist-backend/lib/refstore"
	"refassist-backend/lib/serviceutil"
	"refassist-backend/services/harvest"
	"refassist-backend/services/keychain"
	keychaindb "refassist-backend/services/keychain/db"
	"refassist-backend/services/mailbox"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "refassist",
	Short: "refassist is a CLI for scraping editorial portals and correlating referee mail.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	// StoreDb is the snapshot database, defaults to results.db.
	StoreDb string `json:"store_db"`
	// KeychainDb holds credentials and oauth tokens, defaults to keychain.db.
	KeychainDb string         `json:"keychain_db"`
	Harvest    harvest.Config `json:"harvest"`
}

func readConfig() Config {
	configutil.LoadDotenv()

	cfg, err := configutil.ReadConfig[Config]("refassist.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.StoreDb == "" {
		cfg.StoreDb = "results.db"
	}
	if cfg.KeychainDb == "" {
		cfg.KeychainDb = "keychain.db"
	}
	return cfg
}

func openKeychain(ctx context.Context, cfg Config) *keychain.Service {
	database, err := sql.Open("sqlite", cfg.KeychainDb)
	if err != nil {
		serviceutil.Fatal("failed to open keychain db", err)
	}
	_, err = database.Exec(keychaindb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to initialize keychain db", err)
	}
	return keychain.NewService(ctx, database)
}

func openStore(cfg Config) refstore.Store {
	store, err := refstore.Open(cfg.StoreDb)
	if err != nil {
		serviceutil.Fatal("failed to open snapshot db", err)
	}
	return store
}

func openMailbox(kc *keychain.Service) *mailbox.Service {
	return mailbox.NewService(kc)
}
