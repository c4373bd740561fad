package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/exchange"
	"tradebot/pkg/retry"
)

// ============================================================
// Сверка с биржей и зачистка зависших ордеров
//
// Стрим отчётов может терять события (реконнект, обрыв keepalive).
// Периодический REST-опрос восстанавливает истинное состояние:
// - по каждому локально активному ордеру запрашивается статус,
//   расхождение применяется как синтетический отчёт
// - ордера, висящие в Pending/New дольше лимита, отменяются,
//   чтобы ограничить окно "в полёте - судьба неизвестна"
// ============================================================

// periodicTasks - фоновый цикл сверки, зачистки и обновления баланса
func (e *Engine) periodicTasks(ctx context.Context) {
	defer e.wg.Done()

	reconcile := time.NewTicker(e.cfg.ReconcileInterval)
	defer reconcile.Stop()
	account := time.NewTicker(e.cfg.AccountInterval)
	defer account.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconcile.C:
			e.reconcileOrders(ctx)
			e.cancelStaleOrders(ctx)
		case <-account.C:
			e.refreshAccount(ctx)
		}
	}
}

// reconcileOrders сверяет локально активные ордера с биржей
//
// Снимок ID собирается под Range, сетевые запросы идут после -
// локи таблицы и ордеров не держатся через I/O.
func (e *Engine) reconcileOrders(ctx context.Context) {
	type pending struct {
		clientID string
		symbol   string
	}
	var toCheck []pending

	e.orders.Range(func(o *Order) bool {
		if !o.IsTerminal() {
			toCheck = append(toCheck, pending{o.ClientOrderID, o.Symbol})
		}
		return true
	})
	if len(toCheck) == 0 {
		return
	}

	var drift int
	for _, p := range toCheck {
		status, err := retry.DoWithResult(ctx, func() (*exchange.OrderStatus, error) {
			return e.exch.GetOrder(ctx, p.symbol, p.clientID)
		}, retry.DefaultConfig())
		if err != nil {
			e.log.Warn("reconciliation query failed",
				zap.String("client_id", p.clientID), zap.Error(err))
			continue
		}

		order, ok := e.orders.Get(p.clientID)
		if !ok {
			continue // терминализировался отчётом, пока мы опрашивали
		}

		// Расхождение применяем тем же путём, что и стримовые отчёты:
		// синтетический отчёт без trade id (кумулятивы без комиссии)
		snap := order.Snapshot()
		if MapExchangeStatus(status.Status) == snap.State && status.ExecutedQty == snap.ExecutedQty {
			continue
		}
		drift++
		e.log.Warn("order drift detected",
			zap.String("client_id", p.clientID),
			zap.String("local", string(snap.State)),
			zap.String("exchange", status.Status))

		e.routeReport(&exchange.ExecutionReport{
			ExchangeID:    status.ExchangeID,
			ClientOrderID: p.clientID,
			Symbol:        p.symbol,
			Status:        status.Status,
			CumFilledQty:  status.ExecutedQty,
			CumQuoteQty:   status.CumQuoteQty,
			LastFillPrice: status.AvgFillPrice,
			LastFillQty:   status.ExecutedQty - snap.ExecutedQty,
			Timestamp:     time.Now(),
		})
	}

	if drift > 0 {
		ReconciliationRuns.WithLabelValues("drift").Inc()
	} else {
		ReconciliationRuns.WithLabelValues("clean").Inc()
	}
}

// cancelStaleOrders отменяет ордера, не дошедшие до терминального
// состояния за отведённое время
func (e *Engine) cancelStaleOrders(ctx context.Context) {
	var stale []*Order
	e.orders.Range(func(o *Order) bool {
		if !o.IsTerminal() && o.Age() > e.cfg.StaleOrderTimeout {
			stale = append(stale, o)
		}
		return true
	})

	for _, o := range stale {
		e.log.Warn("cancelling stale order",
			zap.String("client_id", o.ClientOrderID),
			zap.String("symbol", o.Symbol),
			zap.Duration("age", o.Age()))

		if err := e.exch.CancelOrder(ctx, o.Symbol, o.ClientOrderID); err != nil {
			e.log.Error("stale cancel failed",
				zap.String("client_id", o.ClientOrderID), zap.Error(err))
			continue
		}
		StaleOrdersCancelled.Inc()
		// Терминальный переход придёт отчётом CANCELED; если ордер
		// успел исполниться, биржа вернёт unknown order и отчёт
		// FILLED подберёт сверка
	}
}

// SyncOpenOrders - стартовая сверка: подхватывает ордера, оставшиеся
// на бирже с прошлого запуска, чтобы их вели отчёты и зачистка
func (e *Engine) SyncOpenOrders(ctx context.Context) error {
	for _, symbol := range e.cfg.Symbols {
		open, err := e.exch.GetOpenOrders(ctx, symbol)
		if err != nil {
			return err
		}
		for _, st := range open {
			if _, known := e.orders.Get(st.ClientOrderID); known {
				continue
			}
			// Market-ордера на бирже не задерживаются, остаться мог
			// только лимитный
			o := NewOrder(st.ClientOrderID, symbol, st.Side, exchange.OrderTypeLimit,
				st.Quantity, 0, 0, "", false)
			o.State = MapExchangeStatus(st.Status)
			o.ExchangeID = st.ExchangeID
			o.ExecutedQty = st.ExecutedQty
			if err := e.orders.Add(o); err != nil {
				e.log.Warn("failed to adopt open order",
					zap.String("client_id", st.ClientOrderID), zap.Error(err))
				continue
			}
			e.log.Info("adopted open order from exchange",
				zap.String("client_id", st.ClientOrderID),
				zap.String("symbol", symbol),
				zap.String("status", st.Status))
		}
	}
	ActiveOrdersGauge.Set(float64(e.orders.Count()))
	return nil
}
