// Package metrics exposes Prometheus counters for the exchange.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tangelo-dex/tangelo/pkg/app/core/ledger"
	"github.com/tangelo-dex/tangelo/pkg/app/exchange"
)

type Metrics struct {
	Trades    *prometheus.CounterVec
	Booked    *prometheus.CounterVec
	Cancelled *prometheus.CounterVec
	Refunds   *prometheus.CounterVec
	Deposits  prometheus.Counter
	Rejected  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tangelo_trades_total",
			Help: "Trade executions, by symbol and taker side.",
		}, []string{"symbol", "side"}),
		Booked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tangelo_orders_booked_total",
			Help: "Resting orders booked, by symbol and side.",
		}, []string{"symbol", "side"}),
		Cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tangelo_orders_cancelled_total",
			Help: "Resting orders cancelled, by symbol and side.",
		}, []string{"symbol", "side"}),
		Refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tangelo_refunds_total",
			Help: "Unbookable deposit leftovers returned, by symbol.",
		}, []string{"symbol"}),
		Deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tangelo_deposits_total",
			Help: "Deposits accepted and settled.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tangelo_deposits_rejected_total",
			Help: "Deposits rejected before any mutation.",
		}),
	}
	reg.MustRegister(m.Trades, m.Booked, m.Cancelled, m.Refunds, m.Deposits, m.Rejected)
	return m
}

// Hook wraps the exchange's deposit hook, counting accepted and rejected
// deposits. Rejections never publish a receipt, so they are only visible
// here at the hook boundary.
func (m *Metrics) Hook(next ledger.DepositHook) ledger.DepositHook {
	return func(t ledger.Transfer) error {
		err := next(t)
		if err != nil {
			m.Rejected.Inc()
		} else {
			m.Deposits.Inc()
		}
		return err
	}
}

// Handler serves the metrics endpoint for the API mux.
func Handler() http.Handler { return promhttp.Handler() }

// Publish implements exchange.Observer.
func (m *Metrics) Publish(r exchange.Receipt) {
	switch r.Kind {
	case exchange.ReceiptTrade:
		m.Trades.WithLabelValues(r.Symbol, r.Side.Opposite().String()).Inc()
	case exchange.ReceiptBooked:
		m.Booked.WithLabelValues(r.Symbol, r.Side.String()).Inc()
	case exchange.ReceiptCancelled:
		m.Cancelled.WithLabelValues(r.Symbol, r.Side.String()).Inc()
	case exchange.ReceiptRefund:
		m.Refunds.WithLabelValues(r.Symbol).Inc()
	}
}
