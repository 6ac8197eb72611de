package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/bin"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/kernel"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/server"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Introspection API port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Introspection API host")
	flag.StringVar(&cfg.Programs.Dir, "programs", cfg.Programs.Dir, "Directory of program manifests (empty for the built-in programs)")
	flag.StringVar(&cfg.Boot.Plan, "boot", cfg.Boot.Plan, "TOML boot plan")
	flag.StringVar(&cfg.Boot.InitPath, "init", cfg.Boot.InitPath, "Program started when there is no boot plan")
	flag.IntVar(&cfg.Kernel.ProcMax, "procs", cfg.Kernel.ProcMax, "Process table size")
	flag.IntVar(&cfg.Kernel.MemPages, "pages", cfg.Kernel.MemPages, "Physical pages")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	serve := flag.Bool("serve", true, "Serve the introspection API; when false, exit once every process has exited")
	flag.Parse()

	if flag.NArg() > 0 {
		cfg.Boot.InitArgs = flag.Args()
	}
	if cfg.Logging.Development {
		cfg.Logging.Level = "debug"
	}

	if err := run(cfg, *serve); err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, serve bool) error {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)
	tracer := tracing.New("kernel", logger.Logger, tracing.DefaultCapacity)
	defer tracer.Close()

	store, err := openStore(ctx, cfg.Programs)
	if err != nil {
		return err
	}
	registry := loader.NewRegistry()
	bin.Register(registry)

	k, err := kernel.New(store, registry,
		kernel.WithLogger(logger.Logger),
		kernel.WithMetrics(metrics),
		kernel.WithTracer(tracer),
		kernel.WithLimits(limits(cfg)),
	)
	if err != nil {
		return err
	}

	plan, err := cfg.Boot.Resolve()
	if err != nil {
		return err
	}
	for _, e := range plan.Spawn {
		pid, err := k.Spawn(e.Path, e.Args())
		if err != nil {
			return fmt.Errorf("boot %s: %w", e.Path, err)
		}
		logger.Info("Started", logging.Pid(int32(pid)), zap.String("path", e.Path), zap.Strings("argv", e.Args()))
	}

	g, gctx := errgroup.WithContext(ctx)
	if serve {
		srv := server.NewServer(cfg, server.Deps{
			Kernel:   k,
			Logger:   logger,
			Metrics:  metrics,
			Gatherer: reg,
			Tracer:   tracer,
		})
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		if err := k.Idle(gctx); err != nil {
			stats := k.Stats()
			logger.Info("Shutting down with processes running",
				zap.Int("processes", stats.Processes),
				zap.Int("threads", stats.Threads),
			)
			return nil
		}
		logger.Info("All processes have exited")
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.ProgramConfig) (loader.Store, error) {
	if cfg.Dir == "" {
		store := loader.NewMemStore()
		if err := bin.Install(store); err != nil {
			return nil, err
		}
		return store, nil
	}
	return loader.NewDirStore(ctx, cfg.Dir, cfg.Pattern)
}

func limits(cfg *config.Config) kernel.Limits {
	return kernel.Limits{
		PidMin:      cfg.Kernel.PidMin,
		ProcMax:     cfg.Kernel.ProcMax,
		ThreadMax:   cfg.Kernel.ThreadMax,
		MemPages:    cfg.Kernel.MemPages,
		ArgCountMax: cfg.Exec.ArgMax,
		ArgBytesMax: cfg.Exec.ArgBytes,
		PathMax:     cfg.Exec.PathMax,
	}
}
