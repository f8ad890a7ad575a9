package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/customobjects/internal/config"
	"github.com/annel0/customobjects/internal/customobject"
	"github.com/annel0/customobjects/internal/generator"
	"github.com/annel0/customobjects/internal/library"
	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/metrics"
	"github.com/annel0/customobjects/internal/rotation"
	"github.com/annel0/customobjects/internal/storage"
	"github.com/annel0/customobjects/internal/vec"
)

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигурации (по умолчанию $OTG_CONFIG)")
		structure  = flag.String("structure", "", "Имя корневой структуры")
		seed       = flag.Int64("seed", 1, "Сид генерации")
		x          = flag.Int("x", 0, "X начала структуры")
		y          = flag.Int("y", -1, "Y начала структуры, -1 - по рельефу")
		z          = flag.Int("z", 0, "Z начала структуры")
		rot        = flag.String("rotation", "NORTH", "Поворот: NORTH, EAST, SOUTH, WEST или 0..3")
		loadAll    = flag.Bool("loadall", false, "Загрузить все структуры каталога")
		invalidate = flag.String("invalidate", "", "Сбросить кеш структуры и выйти")
		serve      = flag.Bool("metrics", false, "Открыть /metrics и ждать сигнала после генерации")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := setupLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector()

	store, err := openStore(ctx, cfg.Cache)
	if err != nil {
		logging.Error("❌ Ошибка открытия кеша: %v", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	lib := library.New(library.Options{
		Dir:     cfg.Structures.Dir,
		Store:   store,
		Metrics: collector,
		Workers: cfg.Structures.Workers,
	})

	if cfg.NATS.URL != "" {
		inv, err := library.NewNATSInvalidator(library.NATSConfig{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject}, "")
		if err != nil {
			logging.Warn("NATS недоступен, инвалидация только локальная: %v", err)
		} else {
			defer inv.Close()
			if err := lib.AttachInvalidator(ctx, inv); err != nil {
				logging.Warn("Подписка на инвалидации не удалась: %v", err)
			}
		}
	}

	if *invalidate != "" {
		if err := lib.Invalidate(ctx, *invalidate); err != nil {
			logging.Error("❌ %v", err)
			os.Exit(1)
		}
		logging.Info("Кеш структуры %s сброшен", *invalidate)
		return
	}

	if *loadAll {
		n, err := lib.LoadAll(ctx)
		if err != nil {
			logging.Warn("Часть структур не загружена: %v", err)
		}
		fmt.Printf("loaded %d structures\n", n)
	}

	if *structure != "" {
		r, err := rotation.Parse(*rot)
		if err != nil {
			logging.Error("❌ %v", err)
			os.Exit(2)
		}
		if err := generate(ctx, cfg, lib, collector, *structure, *seed, *x, *y, *z, r); err != nil {
			logging.Error("❌ %v", err)
			os.Exit(1)
		}
	}

	if *serve {
		addr := fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort())
		srv := collector.StartHTTP(addr)
		<-ctx.Done()
		srv.Close()
		logging.Info("👋 Остановлено")
	}
}

func generate(ctx context.Context, cfg *config.Config, lib *library.Library, collector *metrics.Collector,
	name string, seed int64, x, y, z int, r rotation.Rotation) error {

	if y < 0 {
		y = generator.NewTerrain(seed).SurfaceY(x, z)
	}

	world := generator.NewMemoryWorld()
	expander := generator.NewExpander(lib, world, generator.Options{
		MaxDepth:      cfg.Generation.MaxDepth,
		MaxStructures: cfg.Generation.MaxStructures,
		Metrics:       collector,
	})

	root := customobject.StructureCoordinate{Name: name, Position: vec.Vec3{X: x, Y: y, Z: z}, Rotation: r}
	res, err := expander.Expand(ctx, root, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}

	fmt.Printf("run %s\n", res.RunID)
	for _, c := range res.Placed {
		fmt.Printf("  %s\n", c)
	}
	if len(res.Missing) > 0 {
		fmt.Printf("missing: %v\n", res.Missing)
	}
	fmt.Printf("structures=%d blocks=%d unresolved=%d truncated=%t\n",
		len(res.Placed), res.BlocksPlaced, res.Unresolved, res.Truncated)
	if min, max, ok := world.Bounds(); ok {
		fmt.Printf("bounds %s..%s\n", min, max)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.CacheConfig) (storage.StructureStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case config.BackendBadger:
		return storage.NewBadgerStore(cfg.Path)
	case config.BackendRedis:
		return storage.NewRedisStore(ctx, &storage.RedisConfig{
			Addr:      cfg.RedisAddr,
			DB:        cfg.RedisDB,
			KeyPrefix: "otg:structure:",
			TTL:       cfg.TTL,
		})
	default:
		return storage.NewMemoryStore(), nil
	}
}

func setupLogging(cfg config.LoggingConfig) error {
	if cfg.Dir != "" {
		logging.SetLogDir(cfg.Dir)
	}
	if err := logging.InitDefaultLogger("structgen"); err != nil {
		return err
	}
	console, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		return err
	}
	file, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		return err
	}
	logging.GetLoggerManager().SetAllLevels(console, file)
	return nil
}
