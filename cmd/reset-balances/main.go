// Command reset-balances sets every account balance back to the configured starting
// balance. Transaction history is kept.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/config"
	"github.com/securebank/securebank/internal/infra"
	"github.com/securebank/securebank/internal/ledger"
	"github.com/securebank/securebank/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	amountFlag := flag.String("amount", cfg.StartingBalance.StringFixed(2), "balance to assign to every account")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.AppName+"-reset-balances", cfg.AppEnv)

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil || amount.IsNegative() {
		logger.Error("invalid amount", "amount", *amountFlag)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	n, err := ledger.NewPostgresLedger(db).ResetBalances(ctx, amount.Round(2))
	if err != nil {
		logger.Error("reset balances", "error", err)
		os.Exit(1)
	}
	logger.Info("balances reset", "accounts", n, "amount", amount.StringFixed(2))
}
