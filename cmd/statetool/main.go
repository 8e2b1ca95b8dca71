// statetool — операционная утилита над снапшотом бота:
//
//	statetool dump            — печать состояния и целей из файлового стора
//	statetool migrate         — перенос файлового снапшота в постгрес
//
// Настройки берутся из флагов/ENV через viper (STATETOOL_*).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bybit_bot/internal/modules/storage/file"
	"bybit_bot/internal/modules/storage/pg"
	"bybit_bot/pkg/db"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func main() {
	viper.SetEnvPrefix("STATETOOL")
	viper.AutomaticEnv()
	viper.SetDefault("store_path", "data/state.json")
	viper.SetDefault("db_dsn", "")
	viper.SetDefault("timeout", "30s")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	timeout, err := time.ParseDuration(viper.GetString("timeout"))
	if err != nil {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch os.Args[1] {
	case "dump":
		err = dump(ctx)
	case "migrate":
		err = migrate(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "statetool:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: statetool [dump|migrate]")
	fmt.Fprintln(os.Stderr, "  STATETOOL_STORE_PATH — путь к JSON-снапшоту (default data/state.json)")
	fmt.Fprintln(os.Stderr, "  STATETOOL_DB_DSN     — DSN постгреса (нужен для migrate)")
}

func dump(ctx context.Context) error {
	st := file.NewStore(viper.GetString("store_path"))

	trading, err := st.TradingStates(ctx)
	if err != nil {
		return errors.Wrap(err, "read trading states")
	}
	targets, err := st.Targets(ctx)
	if err != nil {
		return errors.Wrap(err, "read targets")
	}

	fmt.Printf("trading states: %d\n", len(trading))
	for userID, s := range trading {
		fmt.Printf("  user=%d running=%v order=%v position=%v\n",
			userID, s.Running, s.Order != nil, s.Position != nil)
	}
	fmt.Printf("targets: %d users\n", len(targets))
	for userID, bySymbol := range targets {
		for symbol, price := range bySymbol {
			fmt.Printf("  user=%d %s -> %g\n", userID, symbol, price)
		}
	}
	return nil
}

func migrate(ctx context.Context) error {
	dsn := viper.GetString("db_dsn")
	if dsn == "" {
		return errors.New("STATETOOL_DB_DSN is required for migrate")
	}

	src := file.NewStore(viper.GetString("store_path"))

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping postgres")
	}

	dst := pg.NewStore(db.NewPgTxManager(pool))
	if err := dst.EnsureSchema(ctx); err != nil {
		return errors.Wrap(err, "ensure schema")
	}

	trading, err := src.TradingStates(ctx)
	if err != nil {
		return errors.Wrap(err, "read trading states")
	}
	for userID, s := range trading {
		if err := dst.SaveTradingState(ctx, userID, s); err != nil {
			return errors.Wrapf(err, "migrate trading state user=%d", userID)
		}
	}

	targets, err := src.Targets(ctx)
	if err != nil {
		return errors.Wrap(err, "read targets")
	}
	for userID, bySymbol := range targets {
		for symbol, price := range bySymbol {
			if err := dst.SaveTarget(ctx, userID, symbol, price); err != nil {
				return errors.Wrapf(err, "migrate target user=%d symbol=%s", userID, symbol)
			}
		}
	}

	fmt.Printf("migrated %d trading states, %d users with targets\n", len(trading), len(targets))
	return nil
}
