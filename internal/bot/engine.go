package bot

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// ============ Object Pool для ценовых тиков ============
// Убирает аллокации в горячем пути при потоке в тысячи тиков/сек

var tickPool = sync.Pool{
	New: func() interface{} {
		return &exchange.PriceTick{}
	},
}

func acquireTick() *exchange.PriceTick {
	return tickPool.Get().(*exchange.PriceTick)
}

// releaseTick возвращает тик в пул
// ВАЖНО: вызывать только после полной обработки события!
func releaseTick(t *exchange.PriceTick) {
	t.Symbol = ""
	t.Price = 0
	t.Timestamp = time.Time{}
	tickPool.Put(t)
}

// TrendAdvisor - внешний советник по тренду (опциональный).
// Ошибка советника не блокирует вход - решение принимается без него.
type TrendAdvisor interface {
	Advise(ctx context.Context, symbol string) (*models.TrendAdvice, error)
}

// EngineConfig - параметры исполнительного ядра
type EngineConfig struct {
	Symbols           []string      // торгуемые символы
	OrderQtyPrecision int           // знаков после запятой в объёме ордера
	OrderTimeout      time.Duration // таймаут отправки ордера
	StaleOrderTimeout time.Duration // возраст, после которого Pending/New ордер отменяется
	ReconcileInterval time.Duration // период REST-сверки с биржей
	AccountInterval   time.Duration // период обновления баланса
	TrailingActivationPct float64   // активация трейлинга, % от входа
	TrailingDistancePct   float64   // дистанция трейлинга, %
	UseTrailing       bool
}

// Engine - исполнительное ядро бота (EVENT-DRIVEN архитектура)
//
// Три конкурентных продьюсера:
// - ценовые тики: роутер хэширует символ в шард, воркеры шардов
//   обновляют позиции и проверяют защитные уровни
// - отчёты исполнения: ОДИН консьюмер, единственный мутатор
//   таблицы ордеров (отчёты одного ордера применяются по порядку)
// - периодическая сверка: REST-запросы к бирже ловят потерянные
//   стримом события (recovery.go)
//
// Сетевые вызовы никогда не делаются под локом позиции/ордера:
// лок берётся чтобы прочитать/изменить локальное состояние,
// отпускается до запроса, результат применяется новым захватом.
type Engine struct {
	cfg  EngineConfig
	log  *zap.Logger
	exch exchange.Exchange
	risk *RiskGate

	orders    *OrderTable
	positions *PositionRegistry

	advisor TrendAdvisor // nil = советник выключен

	tickShards []*tickShard
	numShards  int

	reports chan *exchange.ExecutionReport

	// Кэш состояния счёта, обновляется периодически
	accountMu sync.RWMutex
	account   exchange.AccountState

	// Канал уведомлений (non-blocking отправка)
	notifyCh chan *models.Notification

	// Callbacks для персистентности и UI, выставляются до Run
	onOrderUpdate   func(snap OrderSnapshot)
	onPositionEvent func(snap PositionSnapshot, closed bool)
	onTradeClosed   func(trade *models.TradeRecord)

	orderSeq int64
	posSeq   int64

	running int32
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type tickShard struct {
	ticks chan *exchange.PriceTick
}

// NewEngine создаёт ядро. Число шардов по числу CPU, в пределах [4, 32].
func NewEngine(cfg EngineConfig, exch exchange.Exchange, risk *RiskGate, log *zap.Logger) *Engine {
	numShards := runtime.NumCPU()
	if numShards < 4 {
		numShards = 4
	}
	if numShards > 32 {
		numShards = 32
	}

	e := &Engine{
		cfg:        cfg,
		log:        log,
		exch:       exch,
		risk:       risk,
		orders:     NewOrderTable(),
		positions:  NewPositionRegistry(),
		tickShards: make([]*tickShard, numShards),
		numShards:  numShards,
		reports:    make(chan *exchange.ExecutionReport, 1024),
		notifyCh:   make(chan *models.Notification, 256),
	}
	for i := 0; i < numShards; i++ {
		e.tickShards[i] = &tickShard{
			ticks: make(chan *exchange.PriceTick, 512),
		}
	}
	return e
}

// SetAdvisor подключает внешнего советника по тренду
func (e *Engine) SetAdvisor(a TrendAdvisor) { e.advisor = a }

// SetOrderCallback регистрирует приёмник обновлений ордеров
func (e *Engine) SetOrderCallback(fn func(OrderSnapshot)) { e.onOrderUpdate = fn }

// SetPositionCallback регистрирует приёмник событий позиций
func (e *Engine) SetPositionCallback(fn func(PositionSnapshot, bool)) { e.onPositionEvent = fn }

// SetTradeCallback регистрирует приёмник закрытых сделок
func (e *Engine) SetTradeCallback(fn func(*models.TradeRecord)) { e.onTradeClosed = fn }

// Notifications возвращает канал уведомлений для потребителя
func (e *Engine) Notifications() <-chan *models.Notification { return e.notifyCh }

// Positions возвращает реестр позиций (для API)
func (e *Engine) Positions() *PositionRegistry { return e.positions }

// Orders возвращает таблицу ордеров (для API)
func (e *Engine) Orders() *OrderTable { return e.orders }

// Run запускает воркеры и подписки. Блокируется до отмены ctx.
func (e *Engine) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return fmt.Errorf("engine already running")
	}
	ctx, e.cancel = context.WithCancel(ctx)

	// Подхват ордеров, оставшихся на бирже с прошлого запуска
	if err := e.SyncOpenOrders(ctx); err != nil {
		e.log.Warn("startup order sync failed", zap.Error(err))
	}

	// Воркеры ценовых шардов
	for i := 0; i < e.numShards; i++ {
		e.wg.Add(1)
		go e.tickWorker(ctx, i)
	}

	// Единственный консьюмер отчётов исполнения
	e.wg.Add(1)
	go e.reportLoop(ctx)

	// Сверка, зависшие ордера, баланс
	e.wg.Add(1)
	go e.periodicTasks(ctx)

	// Подписки на стримы биржи
	if err := e.exch.SubscribeExecutions(e.routeReport); err != nil {
		e.cancel()
		return fmt.Errorf("subscribe executions: %w", err)
	}
	for _, symbol := range e.cfg.Symbols {
		if err := e.exch.SubscribeTicker(symbol, e.routeTick); err != nil {
			e.cancel()
			return fmt.Errorf("subscribe ticker %s: %w", symbol, err)
		}
	}

	// Начальное состояние счёта
	e.refreshAccount(ctx)

	e.log.Info("engine started",
		zap.Int("shards", e.numShards),
		zap.Strings("symbols", e.cfg.Symbols))

	<-ctx.Done()
	e.wg.Wait()
	return ctx.Err()
}

// Stop останавливает ядро
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// ============================================================
// Ценовой путь
// ============================================================

func shardIndex(symbol string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32()) % n
}

// routeTick - детерминированный роутинг тика в шард по символу.
// Один символ всегда обрабатывается одним шардом, так что тики
// по символу применяются в порядке прихода.
func (e *Engine) routeTick(tick *exchange.PriceTick) {
	idx := shardIndex(tick.Symbol, e.numShards)

	t := acquireTick()
	*t = *tick

	select {
	case e.tickShards[idx].ticks <- t:
	default:
		// Буфер полон - тик отбрасываем, следующий принесёт
		// более свежую цену
		releaseTick(t)
		TicksDropped.WithLabelValues(tick.Symbol).Inc()
	}
}

func (e *Engine) tickWorker(ctx context.Context, idx int) {
	defer e.wg.Done()
	shard := e.tickShards[idx]
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-shard.ticks:
			e.handleTick(t)
			releaseTick(t)
		}
	}
}

// handleTick обновляет позицию по символу и проверяет защитные уровни.
// Без сетевых запросов: закрытие отправляется асинхронно.
func (e *Engine) handleTick(t *exchange.PriceTick) {
	start := time.Now()
	TicksProcessed.WithLabelValues(t.Symbol).Inc()

	pos, ok := e.positions.GetBySymbol(t.Symbol)
	if !ok {
		return
	}

	pos.UpdatePrice(t.Price)

	var reason string
	switch {
	case pos.ShouldTriggerStopLoss():
		if pos.TrailingStopPrice() != 0 {
			reason = models.ExitReasonTrailingStop
		} else {
			reason = models.ExitReasonStopLoss
		}
	case pos.ShouldTriggerTakeProfit():
		reason = models.ExitReasonTakeProfit
	default:
		TickProcessingLatency.WithLabelValues(t.Symbol).
			Observe(float64(time.Since(start).Microseconds()) / 1000)
		return
	}

	// Double-close guard: флаг closing взводится атомарно,
	// второй тик по той же цене не продублирует ордер
	if !pos.MarkClosing() {
		return
	}

	// Асинхронное закрытие - не блокируем воркер шарда
	go e.submitClose(pos, reason)

	TickProcessingLatency.WithLabelValues(t.Symbol).
		Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// ============================================================
// Вход в позицию
// ============================================================

// SubmitSignal - вход в позицию по агрегированному сигналу стратегий.
// Вызывается стратегийным потоком; все проверки риска внутри.
// Отказ риск-гейта - нормальный исход, возвращается как RiskViolation.
func (e *Engine) SubmitSignal(ctx context.Context, sig *models.EntrySignal) error {
	if sig.Signal == models.SignalNeutral {
		return &RiskViolation{Check: "signal", Reason: "neutral signal"}
	}
	if _, open := e.positions.GetBySymbol(sig.Symbol); open {
		return &RiskViolation{Check: "position_exists", Reason: fmt.Sprintf("position for %s already open", sig.Symbol)}
	}

	// Советник: расхождение с трендом блокирует вход,
	// недоступность советника - нет
	if e.advisor != nil {
		advice, err := e.advisor.Advise(ctx, sig.Symbol)
		if err != nil {
			e.log.Warn("advisor unavailable, proceeding without", zap.Error(err))
		} else if advice != nil && !advice.Agrees(sig.Signal) {
			RiskRejections.WithLabelValues("advisor").Inc()
			return &RiskViolation{
				Check:  "advisor",
				Reason: fmt.Sprintf("trend %s disagrees with signal %s", advice.Trend, sig.Signal),
			}
		}
	}

	balance := e.accountBalance()
	notional := e.risk.CalculatePositionSize(balance)

	candidate := EntryCandidate{
		Symbol:     sig.Symbol,
		Side:       signalSide(sig.Signal),
		Notional:   notional,
		Confidence: sig.Confidence,
		Strong:     sig.Strong,
		RiskReward: sig.RiskReward,
		Signal:     sig.Signal,
	}
	if err := e.risk.CanOpenPosition(candidate, e.positions.Count(), e.positions.TotalExposure(), balance); err != nil {
		var rv *RiskViolation
		if errors.As(err, &rv) {
			RiskRejections.WithLabelValues(rv.Check).Inc()
		}
		return err
	}

	price := sig.ReferencePrice
	if price <= 0 {
		return fmt.Errorf("signal for %s carries no reference price", sig.Symbol)
	}
	qty := utils.RoundQtyDown(notional/price, e.cfg.OrderQtyPrecision)
	if qty <= 0 {
		return &RiskViolation{Check: "quantity", Reason: "computed quantity rounds to zero"}
	}

	side := exchange.SideBuy
	if candidate.Side == SideShort {
		side = exchange.SideSell
	}

	clientID := e.nextClientID()
	order := NewOrder(clientID, sig.Symbol, side, exchange.OrderTypeMarket, qty, 0, 0, "", true)
	order.strategy = sig.Strategy
	order.confidence = sig.Confidence
	if err := e.orders.Add(order); err != nil {
		return err
	}
	ActiveOrdersGauge.Set(float64(e.orders.Count()))

	e.log.Info("submitting entry order",
		zap.String("symbol", sig.Symbol),
		zap.String("side", candidate.Side),
		zap.Float64("qty", qty),
		zap.Float64("notional", notional),
		zap.String("strategy", sig.Strategy))

	return e.submitOrder(ctx, order)
}

// submitOrder отправляет ордер на биржу. Локи не держатся через
// сетевой вызов. Таймаут отправки не означает отказ: ордер остаётся
// Pending до отчёта или сверки.
func (e *Engine) submitOrder(ctx context.Context, o *Order) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	defer cancel()

	req := exchange.OrderRequest{
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		Quantity:      o.OriginalQty,
		Price:         o.Price,
		StopPrice:     o.StopPrice,
		ReduceOnly:    !o.IsEntry,
	}

	start := time.Now()
	ack, err := e.exch.PlaceOrder(ctx, &req)
	OrderSubmitLatency.WithLabelValues(o.Side, o.Type).
		Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		if tripped := e.risk.RecordError(); tripped {
			e.onCircuitOpen()
		}
		CircuitStateGauge.Set(float64(e.risk.CircuitState()))
		if ctx.Err() != nil {
			// Таймаут: судьбу ордера выяснит сверка
			e.log.Warn("order submission timed out, awaiting reconciliation",
				zap.String("client_id", o.ClientOrderID))
			return nil
		}
		e.orders.Remove(o.ClientOrderID)
		ActiveOrdersGauge.Set(float64(e.orders.Count()))
		return fmt.Errorf("place order %s: %w", o.ClientOrderID, err)
	}

	if closed := e.risk.RecordSuccess(); closed {
		e.onCircuitClose()
	}
	CircuitStateGauge.Set(float64(e.risk.CircuitState()))

	o.MarkSubmitted(ack)
	OrdersSubmitted.WithLabelValues(o.Symbol, o.Side, boolLabel(o.IsEntry)).Inc()
	e.emitOrderUpdate(o)
	return nil
}

// submitClose отправляет market-ордер закрытия позиции
func (e *Engine) submitClose(pos *Position, reason string) {
	snap := pos.Snapshot()

	side := exchange.SideSell
	if snap.Side == SideShort {
		side = exchange.SideBuy
	}

	clientID := e.nextClientID()
	order := NewOrder(clientID, snap.Symbol, side, exchange.OrderTypeMarket, snap.Quantity, 0, 0, snap.ID, false)
	order.exitReason = reason
	if err := e.orders.Add(order); err != nil {
		pos.ClearClosing()
		e.log.Error("failed to register close order", zap.Error(err))
		return
	}
	ActiveOrdersGauge.Set(float64(e.orders.Count()))

	e.log.Info("closing position",
		zap.String("position", snap.ID),
		zap.String("symbol", snap.Symbol),
		zap.String("reason", reason),
		zap.Float64("qty", snap.Quantity))

	if err := e.submitOrder(context.Background(), order); err != nil {
		pos.ClearClosing()
		e.log.Error("close order failed", zap.String("position", snap.ID), zap.Error(err))
		e.notify(models.NotificationTypeError, models.SeverityError,
			fmt.Sprintf("Не удалось закрыть позицию %s: %v", snap.Symbol, err))
	}
}

// ClosePosition закрывает одну позицию по запросу оператора
func (e *Engine) ClosePosition(positionID, reason string) error {
	pos, ok := e.positions.Get(positionID)
	if !ok {
		return fmt.Errorf("position %s not found", positionID)
	}
	if !pos.MarkClosing() {
		return fmt.Errorf("position %s is already closing", positionID)
	}
	if reason == "" {
		reason = models.ExitReasonManual
	}
	go e.submitClose(pos, reason)
	return nil
}

// ForceFlatten закрывает все открытые позиции market-ордерами.
// Проверки экспозиции не применяются: закрытие риска всегда разрешено.
func (e *Engine) ForceFlatten(reason string) int {
	var count int
	for _, pos := range e.positions.All() {
		if pos.MarkClosing() {
			count++
			go e.submitClose(pos, reason)
		}
	}
	e.log.Warn("force flatten", zap.Int("positions", count), zap.String("reason", reason))
	return count
}

// ============================================================
// Путь отчётов исполнения
// ============================================================

// routeReport - callback биржевого стрима; только кладёт в канал.
// Отчёты терять нельзя: при полном буфере блокируемся, стрим
// притормозит.
func (e *Engine) routeReport(r *exchange.ExecutionReport) {
	e.reports <- r
}

// reportLoop - единственный консьюмер отчётов. Один поток гарантирует
// применение отчётов одного ордера в порядке прихода.
func (e *Engine) reportLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-e.reports:
			e.handleReport(r)
		}
	}
}

func (e *Engine) handleReport(r *exchange.ExecutionReport) {
	ExecutionReports.WithLabelValues(r.Status).Inc()

	order, ok := e.orders.Get(r.ClientOrderID)
	if !ok {
		// Ордер не наш (ручная торговля с того же счёта) или уже
		// заархивирован - фиксируем и пропускаем
		e.log.Debug("report for unknown order",
			zap.String("client_id", r.ClientOrderID),
			zap.String("status", r.Status))
		return
	}

	delta := order.ApplyFill(r)

	if delta.QtyDelta > 0 {
		if order.IsEntry {
			e.applyEntryFill(order, r, delta)
		} else {
			e.applyExitFill(order, r, delta)
		}
	}

	if delta.StateChange {
		e.emitOrderUpdate(order)
		switch delta.NewState {
		case OrderRejected:
			OrdersRejected.WithLabelValues(order.Symbol).Inc()
			if tripped := e.risk.RecordError(); tripped {
				e.onCircuitOpen()
			}
			CircuitStateGauge.Set(float64(e.risk.CircuitState()))
			e.handleOrderFailure(order)
			e.notify(models.NotificationTypeRejected, models.SeverityWarn,
				fmt.Sprintf("Ордер %s отклонён: %s", order.Symbol, order.Snapshot().RejectReason))
		case OrderCancelled, OrderExpired:
			e.handleOrderFailure(order)
		}
	}

	if order.IsTerminal() {
		e.orders.Remove(order.ClientOrderID)
		ActiveOrdersGauge.Set(float64(e.orders.Count()))
	}
}

// applyEntryFill открывает позицию либо доусредняет существующую
func (e *Engine) applyEntryFill(o *Order, r *exchange.ExecutionReport, delta FillDelta) {
	fillPrice := r.LastFillPrice
	if fillPrice <= 0 {
		fillPrice = o.Snapshot().AvgFillPrice
	}

	pos, exists := e.positions.GetBySymbol(o.Symbol)
	if !exists {
		side := SideLong
		if o.Side == exchange.SideSell {
			side = SideShort
		}
		pos = OpenPosition(e.nextPositionID(), o.Symbol, side, delta.QtyDelta, fillPrice,
			r.Commission, o.ClientOrderID, o.strategy, o.confidence)
		if err := e.positions.Add(pos); err != nil {
			e.log.Error("failed to register position", zap.Error(err))
			return
		}
		e.armProtection(pos)
		OpenPositionsGauge.Set(float64(e.positions.Count()))
		e.emitPositionEvent(pos, false)
		e.notify(models.NotificationTypeEntry, models.SeverityInfo,
			fmt.Sprintf("Открыта позиция %s %s: %.6f @ %.2f", side, o.Symbol, delta.QtyDelta, fillPrice))
	} else {
		if err := pos.AddFill(fillPrice, delta.QtyDelta, r.Commission, o.ClientOrderID); err != nil {
			e.log.Error("add fill failed", zap.String("position", pos.ID), zap.Error(err))
			return
		}
		e.emitPositionEvent(pos, false)
	}
	TotalExposureGauge.Set(e.positions.TotalExposure())
}

// applyExitFill реализует часть позиции по отчёту закрывающего ордера
func (e *Engine) applyExitFill(o *Order, r *exchange.ExecutionReport, delta FillDelta) {
	pos, ok := e.positions.Get(o.PositionID)
	if !ok {
		e.log.Warn("exit fill for unknown position", zap.String("position", o.PositionID))
		return
	}

	fillPrice := r.LastFillPrice
	if fillPrice <= 0 {
		fillPrice = o.Snapshot().AvgFillPrice
	}

	pnl, err := pos.PartialClose(fillPrice, delta.QtyDelta, r.Commission, o.ClientOrderID)
	if err != nil {
		e.log.Error("partial close failed", zap.String("position", pos.ID), zap.Error(err))
		return
	}

	if pos.IsClosed() {
		snap := pos.Snapshot()
		e.positions.Remove(pos.ID)
		OpenPositionsGauge.Set(float64(e.positions.Count()))
		TotalExposureGauge.Set(e.positions.TotalExposure())

		lossHit := e.risk.RecordTrade(snap.RealizedPnl)
		_, dailyPnl, _ := e.risk.DailyStats()
		DailyPnlGauge.Set(dailyPnl)

		e.emitPositionEvent(pos, true)
		e.emitTrade(snap, o, fillPrice)
		e.notify(exitNotification(o.exitReason), models.SeverityInfo,
			fmt.Sprintf("Закрыта позиция %s: PnL %.2f USDT (%s)", snap.Symbol, snap.RealizedPnl, o.exitReason))

		if lossHit {
			e.notify(models.NotificationTypeError, models.SeverityError, "Достигнут дневной лимит убытка")
			if e.risk.ForceFlattenPolicy() {
				e.ForceFlatten(models.ExitReasonForceFlatten)
			}
			e.risk.SetTradingEnabled(false)
		}
	} else {
		e.emitPositionEvent(pos, false)
		e.log.Info("partial close",
			zap.String("position", pos.ID),
			zap.Float64("qty", delta.QtyDelta),
			zap.Float64("pnl", pnl))
	}
}

// armProtection выставляет SL/TP и трейлинг на свежей позиции
func (e *Engine) armProtection(pos *Position) {
	snap := pos.Snapshot()
	isLong := snap.Side == SideLong

	sl := e.risk.CalculateStopLoss(snap.EntryPrice, isLong)
	tp := e.risk.CalculateTakeProfit(snap.EntryPrice, isLong)
	if err := pos.SetSLTP(sl, tp); err != nil {
		e.log.Error("failed to arm sl/tp", zap.String("position", pos.ID), zap.Error(err))
	}

	if e.cfg.UseTrailing && e.cfg.TrailingActivationPct > 0 && e.cfg.TrailingDistancePct > 0 {
		activation := snap.EntryPrice * (1 + e.cfg.TrailingActivationPct/100)
		if !isLong {
			activation = snap.EntryPrice * (1 - e.cfg.TrailingActivationPct/100)
		}
		if err := pos.SetTrailing(activation, e.cfg.TrailingDistancePct); err != nil {
			e.log.Error("failed to arm trailing", zap.String("position", pos.ID), zap.Error(err))
		}
	}
}

// handleOrderFailure возвращает позицию в рабочее состояние, если
// упал её закрывающий ордер
func (e *Engine) handleOrderFailure(o *Order) {
	if o.IsEntry || o.PositionID == "" {
		return
	}
	if pos, ok := e.positions.Get(o.PositionID); ok {
		pos.ClearClosing()
	}
}

// ============================================================
// Счёт и уведомления
// ============================================================

func (e *Engine) refreshAccount(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	acc, err := e.exch.GetAccount(ctx)
	if err != nil {
		e.log.Warn("failed to refresh account", zap.Error(err))
		return
	}
	e.accountMu.Lock()
	e.account = *acc
	e.accountMu.Unlock()
}

func (e *Engine) accountBalance() float64 {
	e.accountMu.RLock()
	defer e.accountMu.RUnlock()
	return e.account.AvailableBalance
}

// AccountSnapshot возвращает сводку по счёту для API
func (e *Engine) AccountSnapshot() models.AccountSnapshot {
	e.accountMu.RLock()
	acc := e.account
	e.accountMu.RUnlock()

	unrealized := e.positions.TotalUnrealized()
	return models.AccountSnapshot{
		Balance:       acc.Balance,
		Equity:        acc.Balance + unrealized,
		MarginUsed:    acc.MarginUsed,
		FreeMargin:    acc.AvailableBalance,
		UnrealizedPnl: unrealized,
		OpenPositions: e.positions.Count(),
		Timestamp:     time.Now(),
	}
}

// notify - неблокирующая отправка уведомления. Переполненный канал
// не должен тормозить торговый путь.
func (e *Engine) notify(ntype, severity, message string) {
	n := &models.Notification{
		Type:      ntype,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
	select {
	case e.notifyCh <- n:
	default:
		e.log.Warn("notification channel full, dropping", zap.String("type", ntype))
	}
}

func (e *Engine) onCircuitOpen() {
	e.log.Error("circuit breaker opened")
	e.notify(models.NotificationTypeCircuitOpen, models.SeverityError,
		"Circuit breaker открыт: торговля приостановлена")
}

func (e *Engine) onCircuitClose() {
	e.log.Info("circuit breaker closed")
	e.notify(models.NotificationTypeCircuitClose, models.SeverityInfo,
		"Circuit breaker закрыт: торговля возобновлена")
}

func (e *Engine) emitOrderUpdate(o *Order) {
	if e.onOrderUpdate != nil {
		e.onOrderUpdate(o.Snapshot())
	}
}

func (e *Engine) emitPositionEvent(pos *Position, closed bool) {
	if e.onPositionEvent != nil {
		e.onPositionEvent(pos.Snapshot(), closed)
	}
}

func (e *Engine) emitTrade(snap PositionSnapshot, exitOrder *Order, exitPrice float64) {
	if e.onTradeClosed == nil {
		return
	}
	e.onTradeClosed(&models.TradeRecord{
		PositionID:  snap.ID,
		Symbol:      snap.Symbol,
		Side:        snap.Side,
		Quantity:    snap.TotalQty,
		EntryPrice:  snap.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnl: snap.RealizedPnl,
		Commission:  snap.Commission,
		ExitReason:  exitOrder.exitReason,
		Strategy:    snap.Strategy,
		OpenedAt:    snap.OpenedAt,
		ClosedAt:    snap.ClosedAt,
	})
}

// ============================================================
// Вспомогательные
// ============================================================

func (e *Engine) nextClientID() string {
	seq := atomic.AddInt64(&e.orderSeq, 1)
	return fmt.Sprintf("tb-%d-%d", time.Now().UnixNano()/int64(time.Millisecond), seq)
}

func (e *Engine) nextPositionID() string {
	seq := atomic.AddInt64(&e.posSeq, 1)
	return fmt.Sprintf("pos-%d-%d", time.Now().Unix(), seq)
}

func signalSide(s models.Signal) string {
	if s == models.SignalShort {
		return SideShort
	}
	return SideLong
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func exitNotification(reason string) string {
	switch reason {
	case models.ExitReasonStopLoss:
		return models.NotificationTypeSL
	case models.ExitReasonTakeProfit:
		return models.NotificationTypeTP
	case models.ExitReasonTrailingStop:
		return models.NotificationTypeTrailing
	default:
		return models.NotificationTypeExit
	}
}

