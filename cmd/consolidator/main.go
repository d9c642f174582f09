package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-consolidator/internal/application/adjustment"
	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/application/scheduler"
	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/memory"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/notify"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/stock-consolidator/internal/infrastructure/redis"
	"github.com/jhoicas/stock-consolidator/internal/infrastructure/seed"
	httpRouter "github.com/jhoicas/stock-consolidator/internal/interfaces/http"
	"github.com/jhoicas/stock-consolidator/pkg/config"
	"github.com/jhoicas/stock-consolidator/pkg/logger"
)

// backend lo que cada driver de almacenamiento aporta al proceso.
type backend struct {
	tx      consolidation.TxRunner
	repos   repository.Repos
	catalog repository.ArticleCatalog
	records repository.NotificationRepository
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando consolidador")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacén")
	}
	defer be.close()

	// Redis opcional: estado del tracker, lock entre instancias y transporte de notificaciones.
	var (
		states     tracking.StateStore = tracking.NewMemoryStateStore()
		publisher  tracking.Publisher  = notify.LogPublisher{Log: log.Component("notify")}
		consOpts   []scheduler.Option
		adjustOpts []scheduler.Option
	)
	if cfg.Redis.Enabled() {
		rdb, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		states = infraredis.NewStateStore(rdb, cfg.Redis.KeyPrefix)
		publisher = infraredis.NewPublisher(rdb, infraredis.Key(cfg.Redis.KeyPrefix, cfg.Redis.NotifyChannel))
		lockLog := log.Component("lock")
		consOpts = append(consOpts, scheduler.WithLocker(infraredis.NewLocker(rdb, cfg.Redis.KeyPrefix, "consolidation", cfg.Scheduler.LockTTL, lockLog)))
		adjustOpts = append(adjustOpts, scheduler.WithLocker(infraredis.NewLocker(rdb, cfg.Redis.KeyPrefix, "adjustment", cfg.Scheduler.LockTTL, lockLog)))
	}
	breaker := notify.NewBreakerPublisher(publisher, cfg.Notify, log.Component("notify"))

	dispatcher := tracking.NewDispatcher(breaker, be.records, tracking.DispatcherConfig{
		MaxAttempts: cfg.Notify.MaxAttempts,
		Backoff:     cfg.Notify.Backoff,
	}, log.Component("dispatcher"))
	tracker := tracking.NewTracker(be.repos.Transfers, be.repos.Deltas, be.repos.Lines, states, dispatcher, log.Component("tracker"))
	engine := consolidation.NewEngine(be.tx, be.repos.Deltas, be.catalog, log.Component("consolidation"))
	processor := adjustment.NewProcessor(be.tx, be.repos.Counts, log.Component("adjustment"))

	iteration := scheduler.NewConsolidationIteration(engine, tracker, log.Component("consolidation"))
	consolidationLoop := scheduler.NewLoop("consolidation", cfg.Scheduler.ConsolidationInterval, iteration.Run,
		log.Component("scheduler"), consOpts...)
	adjustmentLoop := scheduler.NewLoop("adjustment", cfg.Scheduler.AdjustmentInterval,
		scheduler.AdjustmentTask(processor, log.Component("adjustment")), log.Component("scheduler"), adjustOpts...)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           time.Second * 10,
		WriteTimeout:          time.Minute,
		IdleTimeout:           time.Second * 60,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	httpRouter.Router(app, httpRouter.RouterDeps{
		AppName:           cfg.App.Name,
		Engine:            engine,
		ConsolidationLoop: consolidationLoop,
		AdjustmentLoop:    adjustmentLoop,
		Iteration:         iteration,
		Logs:              be.repos.Logs,
		Breaker:           breaker,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consolidationLoop.Run(gctx) })
	g.Go(func() error { return adjustmentLoop.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consolidador finalizado con error")
		be.close()
		os.Exit(1)
	}
	log.Info().Msg("consolidador detenido")
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		store := memory.NewStore()
		if cfg.App.Env == "development" {
			err := store.Run(ctx, func(ctx context.Context, r repository.Repos) error {
				sum, err := seed.Demo(ctx, r, time.Now())
				if err == nil {
					log.Info().Ints64("pallets", sum.Pallets).Int("deltas", sum.Deltas).Msg("datos de demostración cargados")
				}
				return err
			})
			if err != nil {
				return nil, err
			}
		}
		return &backend{tx: store, repos: store.Repos(), catalog: store, records: store, close: func() {}}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(pool, log.Component("migrate")); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &backend{
		tx:      postgres.NewTxRunner(pool),
		repos:   postgres.NewRepos(pool),
		catalog: postgres.NewArticleCatalog(pool),
		records: postgres.NewNotificationRepository(pool),
		close:   pool.Close,
	}, nil
}
