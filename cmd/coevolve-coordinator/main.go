// Command coevolve-coordinator is the rank-0 entrypoint: it listens
// for worker connections, then drives the Generational Driver until a
// termination-test operator stops the run, and finally broadcasts
// shutdown to every worker.
//
// The population initializer, termination test, and fitness function
// wired in here are a reference sphere-function minimizer (package
// demoeval) — selection, mutation, and migration are genetic-algorithm
// internals the core module leaves entirely to the caller, so this
// entrypoint doesn't implement them either.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/config"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/dispatch"
	"github.com/coevolve/coevolve/driver"
	"github.com/coevolve/coevolve/evolog"
	"github.com/coevolve/coevolve/halloffame"
	"github.com/coevolve/coevolve/internal/demoeval"
	"github.com/coevolve/coevolve/operator"
	"github.com/coevolve/coevolve/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		size         = flag.Int("size", 1, "total rank count, including this coordinator")
		addr         = flag.String("addr", "127.0.0.1:7373", "address to listen on for worker connections")
		configFile   = flag.String("config-file", "", "path to a TOML config file")
		configDump   = flag.String("config-dump", "", "path to write the resolved configuration to")
		logFileName  = flag.String("log-file-name", "", "per-rank log file; rank is interpolated before the extension")
		population   = flag.String("population", "", "comma-separated deme sizes, overrides config-file, e.g. 20,20,20")
		generations  = flag.Int("generations", 10, "number of generations to run before the termination test stops the run")
		dimension    = flag.Int("dimension", 10, "genotype length for the reference sphere evaluator")
		vivariumHOF  = flag.Int("vivarium-hall-of-fame-size", 0, "global hall-of-fame size, overrides config-file when > 0")
		demeHOF      = flag.Int("deme-hall-of-fame-size", 0, "per-deme hall-of-fame size, overrides config-file when > 0")
	)
	flag.Parse()

	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Printf("coevolve-coordinator: maxprocs.Set: %v", err)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Printf("coevolve-coordinator: config.Load: %v", err)
			return 1
		}
		cfg = loaded
	}
	if *population != "" {
		sizes, err := parsePopulation(*population)
		if err != nil {
			log.Printf("coevolve-coordinator: parsePopulation: %v", err)
			return 1
		}
		cfg.PopulationSizeVector = sizes
	}
	if *logFileName != "" {
		cfg.LogFileName = *logFileName
	}
	if *vivariumHOF > 0 {
		cfg.VivariumHallOfFameSize = *vivariumHOF
	}
	if *demeHOF > 0 {
		cfg.DemeHallOfFameSize = *demeHOF
	}
	cfg.ProcessSize = *size

	if err := cfg.Validate(); err != nil {
		log.Printf("coevolve-coordinator: %v", err)
		return 1
	}

	if *configDump != "" {
		if err := cfg.Dump(*configDump); err != nil {
			log.Printf("coevolve-coordinator: cfg.Dump: %v", err)
			return 1
		}
	}

	logger := evolog.NewNoop()
	if cfg.LogFileName != "" {
		l, f, err := evolog.NewRankFile(cfg.LogFileName, 0, evolog.LevelInfo)
		if err != nil {
			log.Printf("coevolve-coordinator: evolog.NewRankFile: %v", err)
			return 1
		}
		defer f.Close()
		logger = l
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := transport.NewTCP(ctx, transport.TCPConfig{Rank: 0, Size: cfg.ProcessSize, CoordinatorAddr: *addr})
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
	engine, err := dispatch.NewEngine(t, c, demoeval.Sphere)
	if err != nil {
		logger.Error("startup", "dispatch.NewEngine failed", err)
		return 1
	}

	hof := halloffame.New(len(cfg.PopulationSizeVector), cfg.VivariumHallOfFameSize, cfg.DemeHallOfFameSize, c, lowerIsBetter)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	seed := operator.FuncOperator{OpName: "seed", Fn: func(_ context.Context, d *deme.Deme, _ *deme.Context) error {
		demoeval.SeedDeme(d, *dimension, rng)
		return nil
	}}
	evaluator := &operator.EvaluatorOperator{Engine: engine}
	recordHOF := operator.FuncOperator{OpName: "hall-of-fame", Fn: func(_ context.Context, d *deme.Deme, dctx *deme.Context) error {
		return hof.Update(dctx.DemeIndex, d.Individuals)
	}}
	terminationTest := operator.FuncOperator{OpName: "termination-test", Fn: func(_ context.Context, _ *deme.Deme, dctx *deme.Context) error {
		if dctx.Generation >= *generations {
			dctx.Continue = false
		}
		return nil
	}}

	bootstrap := operator.Pipeline{seed, evaluator, recordHOF}
	mainLoop := operator.Pipeline{evaluator, recordHOF, terminationTest}

	d := driver.New(t, bootstrap, mainLoop)
	vivarium := driver.ResizeVivarium(cfg.PopulationSizeVector)
	dctx := deme.NewContext(0)

	if err := d.Run(ctx, vivarium, dctx); err != nil {
		logger.Error("driver", "run exited with error", err)
		return 1
	}

	if best := hof.Global.Best(); len(best) > 0 {
		logger.Info("run", "best fitness", evolog.F("fitness", fmt.Sprintf("%v", best[0].Fitness())))
	}
	logger.Info("shutdown", "coordinator exiting cleanly", evolog.F("generations", dctx.Generation))
	return 0
}

// lowerIsBetter orders individuals for the reference sphere evaluator,
// which is minimized at the zero vector.
func lowerIsBetter(a, b deme.Individual) int {
	af, bf := a.Fitness().(float64), b.Fitness().(float64)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func parsePopulation(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	sizes := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parsePopulation: invalid entry %q: %w", p, err)
		}
		sizes[i] = n
	}
	return sizes, nil
}
