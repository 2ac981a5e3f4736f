// cmd/txengine/main.go

// txengine 讀取 CSV 交易串流，依序套用到帳本，最後將帳戶表以 CSV 輸出到 stdout：
//
//	txengine [-config file] [-snapshot path] transactions.csv > accounts.csv
//
// 日誌一律寫到 stderr。

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"txengine/internal/config"
	"txengine/internal/engine"
	"txengine/internal/ledger"
	"txengine/internal/logging"
	"txengine/internal/storage"
	"txengine/internal/txcsv"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "txengine:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("txengine", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	snapshot := fs.String("snapshot", "", "also write the final accounts as JSON to this path")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: txengine [-config file] [-snapshot path] transactions.csv")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one input file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *snapshot != "" {
		cfg.Output.SnapshotPath = *snapshot
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := process(ctx, f, cfg.Input, log)
	if err != nil {
		return err
	}
	accts := l.Snapshot()

	if err := txcsv.WriteAccounts(stdout, accts); err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}
	if cfg.Output.SnapshotPath != "" {
		if err := storage.SaveSnapshot(cfg.Output.SnapshotPath, storage.NewSnapshot(runID, accts)); err != nil {
			return err
		}
		log.Info("snapshot written", zap.String("path", cfg.Output.SnapshotPath))
	}
	return nil
}

// process 以新的帳本處理整條串流並回傳帳本。
func process(ctx context.Context, r io.Reader, in config.InputConfig, log *zap.Logger) (*ledger.Ledger, error) {
	src := txcsv.NewReader(r, txcsv.SkipMalformed(in.SkipMalformed), txcsv.WithLogger(log))
	l := ledger.New()
	if _, err := engine.New(l, engine.WithLogger(log)).Run(ctx, src); err != nil {
		return nil, err
	}
	if src.Malformed > 0 {
		log.Warn("malformed records skipped", zap.Int("count", src.Malformed))
	}
	return l, nil
}
