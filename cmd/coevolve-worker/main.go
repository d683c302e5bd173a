// Command coevolve-worker is the worker-rank entrypoint: it joins the
// TCP star topology at the configured rank, then runs the Worker
// Service Loop until it observes EvolutionEnd or a fatal error.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/config"
	"github.com/coevolve/coevolve/evalworker"
	"github.com/coevolve/coevolve/evolog"
	"github.com/coevolve/coevolve/internal/demoeval"
	"github.com/coevolve/coevolve/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		rank        = flag.Int("rank", 0, "this process's rank (must be >= 1)")
		size        = flag.Int("size", 0, "total rank count, including the coordinator")
		addr        = flag.String("addr", "127.0.0.1:7373", "coordinator's listen address")
		configFile  = flag.String("config-file", "", "path to a TOML config file")
		logFileName = flag.String("log-file-name", "", "per-rank log file; rank is interpolated before the extension")
	)
	flag.Parse()

	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Printf("coevolve-worker: maxprocs.Set: %v", err)
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		log.Printf("coevolve-worker: memlimit.SetGoMemLimitWithOpts: %v", err)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Printf("coevolve-worker: config.Load: %v", err)
			return 1
		}
		cfg = loaded
	}
	if *logFileName != "" {
		cfg.LogFileName = *logFileName
	}

	logger := evolog.NewNoop()
	if cfg.LogFileName != "" {
		l, f, err := evolog.NewRankFile(cfg.LogFileName, *rank, evolog.LevelInfo)
		if err != nil {
			log.Printf("coevolve-worker: evolog.NewRankFile: %v", err)
			return 1
		}
		defer f.Close()
		logger = l
	}

	if *rank < 1 || *size < 2 {
		logger.Error("startup", "invalid rank/size", nil,
			evolog.F("rank", *rank), evolog.F("size", *size))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := transport.NewTCP(ctx, transport.TCPConfig{Rank: *rank, Size: *size, CoordinatorAddr: *addr})
	if err != nil {
		logger.Error("startup", "transport.NewTCP failed", err)
		return 1
	}
	defer func() {
		if err := t.Close(); err != nil {
			logger.Warn("shutdown", "transport.Close failed", evolog.F("error", err.Error()))
		}
	}()

	c := codec.JSON[demoeval.Genotype]{}
	w := evalworker.New(t, c, demoeval.Sphere)

	onErr := func(err error) {
		logger.Error("worker", "service loop exited with error", err)
	}
	if err := w.Run(ctx, onErr); err != nil {
		return 1
	}
	logger.Info("shutdown", "worker exiting cleanly", evolog.F("rank", *rank))
	return 0
}
