package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/patch-stream/internal/api"
	"github.com/annel0/patch-stream/internal/config"
	"github.com/annel0/patch-stream/internal/eventbus"
	"github.com/annel0/patch-stream/internal/logging"
	"github.com/annel0/patch-stream/internal/observability"
	"github.com/annel0/patch-stream/internal/patch"
	"github.com/annel0/patch-stream/internal/store"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV PATCH_CONFIG)")
	dataPath := flag.String("data", "data", "каталог данных BadgerDB")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("patch-stream"); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("Запуск сервиса стриминга патчей...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("Ошибка чтения конфигурации: %v", err)
		log.Fatalf("Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	streaming := cfg.Streaming
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	logging.Info("Конфигурация: patch_size=%.0f prefix=%s radius=%d REST=%s",
		streaming.PatchSizeOrDefault(), streaming.PrefixOrDefault(), streaming.Radius, restPort)

	// === TELEMETRY ===
	shutdownTelemetry, err := observability.InitTelemetry(context.Background(), "patch-stream")
	if err != nil {
		logging.Warn("OpenTelemetry не инициализирован: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
		if err != nil {
			logging.Error("JetStream недоступен, используем in-memory шину: %v", err)
			bus = eventbus.NewMemoryBus(1024)
		} else {
			bus = jsBus
			defer jsBus.Close()
		}
	} else {
		bus = eventbus.NewMemoryBus(1024)
	}
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Не удалось подписать лог-листенер: %v", err)
	}
	busExporter := eventbus.NewMetricsExporter(bus)
	busExporter.Start()
	defer busExporter.Stop()

	// === АДРЕСАЦИЯ И ХРАНИЛИЩЕ ===
	addr, err := patch.NewAddressing(streaming.PatchSizeOrDefault(), streaming.PrefixOrDefault(), nil)
	if err != nil {
		logging.Error("Ошибка конфигурации адресации: %v", err)
		log.Fatalf("Ошибка конфигурации адресации: %v", err)
	}

	var gen *store.Generator
	if !streaming.GenDisabled {
		gen = store.NewGenerator(streaming.GenSeed)
	}

	storePath := *dataPath
	if cfg.Storage.Path != "" {
		storePath = cfg.Storage.Path
	}
	badgerStore, err := store.NewBadgerStore(store.BadgerOptions{
		Path:       storePath,
		Addressing: addr,
		Generator:  gen,
		WorldBound: streaming.WorldBound,
	})
	if err != nil {
		logging.Error("Ошибка открытия хранилища патчей: %v", err)
		log.Fatalf("Ошибка открытия хранилища патчей: %v", err)
	}
	defer badgerStore.Close()

	// Хранилище и есть индекс ресурсов схемы
	addr.SetIndex(badgerStore)

	// === ЗЕРКАЛО РЕЗИДЕНТНОГО МНОЖЕСТВА (опционально) ===
	var tracker patch.ResidentTracker
	if cfg.Redis.Addr != "" {
		redisTracker, err := store.NewRedisTracker(store.RedisTrackerConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logging.Warn("Redis недоступен, зеркалирование отключено: %v", err)
		} else {
			tracker = redisTracker
			defer redisTracker.Close()
		}
	}

	// === МЕНЕДЖЕР СТРИМИНГА ===
	mgr, err := patch.NewManager(patch.ManagerOptions{
		PatchSize: streaming.PatchSizeOrDefault(),
		Prefix:    streaming.PrefixOrDefault(),
		Radius:    streaming.Radius,
		Store:     badgerStore,
		Index:     badgerStore,
		Bus:       bus,
		Tracker:   tracker,
		Metrics:   patch.NewMetrics(),
	})
	if err != nil {
		logging.Error("Ошибка создания менеджера стриминга: %v", err)
		log.Fatalf("Ошибка создания менеджера стриминга: %v", err)
	}

	tickEvery := time.Duration(streaming.TickMs) * time.Millisecond
	host := patch.NewHost(mgr, tickEvery, streaming.SweepEvery)
	host.Start()
	defer host.Close()

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port: restPort,
		Host: host,
	})
	restServer.Start()

	logging.Info("Все сервисы запущены")
	logging.Info("   REST API: http://localhost%s", restPort)
	logging.Info("   Health check: http://localhost%s/health", restPort)
	logging.Info("   Метрики: http://localhost%s/metrics", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	// Кооперативная остановка: слив начнётся, когда планировщик освободится
	select {
	case <-host.StopAndUnload():
		logging.Info("Все патчи выгружены")
	case <-time.After(30 * time.Second):
		logging.Warn("Слив не завершился за 30s, выходим принудительно")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки REST API: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("Сервис остановлен")
}
