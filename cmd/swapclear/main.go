package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"swapclear/config"
	"swapclear/core"
	"swapclear/observability/logging"
	"swapclear/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SWAPCLEAR_ENV"))
	logger := logging.Setup("swapclear", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "err", err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	ledger, err := core.NewLedger(db, randomSeed, core.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open ledger", "err", err)
		os.Exit(1)
	}

	if fees := cfg.Fees(); fees.Fee > 0 || fees.FeeCollector != "" {
		if err := ledger.SetFees(fees); err != nil {
			logger.Error("failed to apply fee config", "err", err)
			os.Exit(1)
		}
	}

	salt, err := ledger.CurrentSalt()
	if err != nil {
		logger.Error("failed to read current salt", "err", err)
		os.Exit(1)
	}
	fees, err := ledger.Fees()
	if err != nil {
		logger.Error("failed to read fee config", "err", err)
		os.Exit(1)
	}
	fmt.Printf("current salt: %s\n", salt)
	fmt.Printf("fee: %s, collector: %q\n", fees.Fee, fees.FeeCollector)
}

func randomSeed() [32]byte {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("failed to read random seed: %v", err))
	}
	return seed
}
