package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WatcherNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_watcher_notifications_total",
		Help: "Сработавшие ценовые цели.",
	})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_signals_total",
		Help: "Сигналы по направлению.",
	}, []string{"side"})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_placed_total",
		Help: "Выставленные лимитные ордера симуляции.",
	})

	OrdersExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_executed_total",
		Help: "Лимитные ордера, сконвертированные в позиции.",
	})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_cancelled_total",
		Help: "Отменённые по условию лимитные ордера.",
	})

	PositionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_positions_opened_total",
		Help: "Открытые позиции (сразу по рынку либо из ордера).",
	})

	PositionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_positions_closed_total",
		Help: "Закрытые юзером позиции.",
	})

	PersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_persist_errors_total",
		Help: "Проглоченные ошибки записи снапшота.",
	})
)
