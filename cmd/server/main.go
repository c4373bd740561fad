package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/advisor"
	"tradebot/internal/api"
	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/repository"
	"tradebot/internal/service"
	"tradebot/internal/strategy"
	"tradebot/internal/websocket"
	"tradebot/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Фатальная ошибка", zap.Error(err))
	}
}

func run(cfg *config.Config, log *utils.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// База данных
	db, err := initDatabase(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	log.Info("Подключение к БД установлено", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	tradeRepo := repository.NewTradeRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Лимиты риска из YAML с горячей перезагрузкой
	riskCfg, err := config.LoadRiskConfig(cfg.RiskFile)
	if err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	riskGate, err := bot.NewRiskGate(riskCfg.ToLimits())
	if err != nil {
		return fmt.Errorf("risk gate: %w", err)
	}

	// Восстановление дневных метрик после рестарта
	dayStart := utils.GetDayStart()
	if todayTrades, err := tradeRepo.GetByPeriod(dayStart, time.Now()); err == nil {
		pnl, _ := tradeRepo.SumPnlSince(dayStart)
		riskGate.RestoreDailyState(len(todayTrades), pnl)
		log.Info("Дневные метрики восстановлены",
			zap.Int("trades", len(todayTrades)), zap.Float64("pnl", pnl))
	} else {
		log.Warn("Не удалось восстановить дневные метрики", zap.Error(err))
	}

	riskWatcher, err := config.NewRiskWatcher(cfg.RiskFile, func(rc config.RiskConfig) {
		if err := riskGate.UpdateLimits(rc.ToLimits()); err != nil {
			log.Error("Новые лимиты отклонены", zap.Error(err))
		}
	}, log.Logger)
	if err != nil {
		log.Warn("Горячая перезагрузка лимитов недоступна", zap.Error(err))
	} else {
		go riskWatcher.Run(ctx)
	}

	// Биржа: live или бумажный симулятор поверх реального фида цен
	exch, err := buildExchange(cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	defer exch.Close()

	// Торговое ядро
	engine := bot.NewEngine(bot.EngineConfig{
		Symbols:               cfg.Exchange.Symbols,
		OrderQtyPrecision:     cfg.Bot.QtyPrecision,
		OrderTimeout:          cfg.Bot.OrderTimeout,
		StaleOrderTimeout:     cfg.Bot.StaleOrderTimeout,
		ReconcileInterval:     cfg.Bot.ReconcileInterval,
		AccountInterval:       cfg.Bot.AccountInterval,
		TrailingActivationPct: cfg.Bot.TrailingActivationPct,
		TrailingDistancePct:   cfg.Bot.TrailingDistancePct,
		UseTrailing:           cfg.Bot.UseTrailing,
	}, exch, riskGate, log.Logger)

	// Внешний советник по тренду (опциональный)
	if cfg.Advisor.Enabled {
		engine.SetAdvisor(advisor.NewClient(cfg.Advisor.URL, cfg.Advisor.Timeout, cfg.Advisor.CacheTTL, log.Logger))
		log.Info("Советник по тренду подключен", zap.String("url", cfg.Advisor.URL))
	}

	// WebSocket hub для real-time обновлений UI
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Сервисы
	positionService := service.NewPositionService(engine, tradeRepo, orderRepo, statsRepo, log.Logger)
	positionService.SetWebSocketHub(hub)
	positionService.Wire()

	notificationService := service.NewNotificationService(notificationRepo, settingsRepo, log.Logger)
	notificationService.SetWebSocketHub(hub)
	go notificationService.Run(ctx, engine.Notifications())

	settingsService := service.NewSettingsService(settingsRepo, riskGate, log.Logger)
	if err := settingsService.ApplyToRiskGate(); err != nil {
		log.Warn("Не удалось применить сохраненные настройки", zap.Error(err))
	}

	statsService := service.NewStatsService(statsRepo, log.Logger)

	// Стратегии: на каждой закрытой свече агрегатор решает о входе
	agg, err := strategy.NewAggregator(
		strategy.AggregationPolicy(cfg.Bot.AggregationPolicy),
		strategy.NewRSIStrategy(),
		strategy.NewMACDStrategy(),
		strategy.NewBollingerStrategy(),
		strategy.NewTrendStrategy(),
	)
	if err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}
	runner := strategy.NewRunner(agg, engine, cfg.Bot.CandleInterval, log.Logger)
	for _, symbol := range cfg.Exchange.Symbols {
		if err := exch.SubscribeTicker(symbol, runner.OnTick); err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}

	// Запуск ядра
	engineErr := make(chan error, 1)
	go func() { engineErr <- engine.Run(ctx) }()

	// Периодическая чистка журнала уведомлений
	go notificationCleanupLoop(ctx, notificationService, log)

	// HTTP сервер
	router := api.SetupRoutes(&api.Dependencies{
		PositionService:     positionService,
		StatsService:        statsService,
		SettingsService:     settingsService,
		NotificationService: notificationService,
		RiskGate:            riskGate,
		Hub:                 hub,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP сервер запущен", zap.String("addr", server.Addr))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Ожидание сигнала остановки или фатальной ошибки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Получен сигнал остановки", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP сервер упал", zap.Error(err))
	case err := <-engineErr:
		if err != nil {
			log.Error("Ядро остановилось с ошибкой", zap.Error(err))
		}
	}

	// Graceful shutdown: сначала останавливаем приём запросов,
	// потом ядро (оно дочистит позиции через callbacks)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Ошибка остановки HTTP сервера", zap.Error(err))
	}
	engine.Stop()
	cancel()

	log.Info("Остановка завершена")
	return nil
}

// initDatabase открывает соединение с PostgreSQL и проверяет его
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildExchange выбирает бумажный симулятор или живую биржу
func buildExchange(cfg *config.Config, log *zap.Logger) (exchange.Exchange, error) {
	if cfg.Exchange.Mode == "live" {
		return exchange.NewBinanceFutures(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet, log)
	}

	// Бумажный режим: при наличии ключей (или testnet) цены берутся
	// с реального стрима, исполнение симулируется
	var feed exchange.Exchange
	if cfg.Exchange.APIKey != "" || cfg.Exchange.Testnet {
		real, err := exchange.NewBinanceFutures(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet, log)
		if err != nil {
			log.Warn("Реальный фид цен недоступен, симулятор без фида", zap.Error(err))
		} else {
			feed = real
		}
	}
	return exchange.NewPaperExchange(cfg.Exchange.PaperBalance, cfg.Exchange.PaperSlippage, feed, log), nil
}

// notificationCleanupLoop раз в сутки чистит журнал уведомлений
func notificationCleanupLoop(ctx context.Context, svc *service.NotificationService, log *utils.Logger) {
	const retention = 30 * 24 * time.Hour

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CleanupOld(retention); err != nil {
				log.Warn("Чистка журнала уведомлений не удалась", zap.Error(err))
			}
		}
	}
}
