package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/digikoin-go/amount"
)

// Metrics holds the Prometheus collectors of a ledger engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	LedgerOps      *prometheus.CounterVec
	TotalSupply    prometheus.Gauge
	ReserveUnits   prometheus.Gauge
	Sequence       prometheus.Gauge
	ReserveOps     *prometheus.CounterVec
	RoundsOpened   prometheus.Counter
	DividendPooled prometheus.Counter
	DividendPaid   prometheus.Counter
	Claims         *prometheus.CounterVec
	OracleRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		LedgerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digikoin_ledger_ops_total",
				Help: "Ledger operations by kind and result",
			},
			[]string{"op", "result"},
		),
		TotalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digikoin_total_supply_units",
			Help: "Total supply of ledger units",
		}),
		ReserveUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digikoin_reserve_units",
			Help: "Units held by the reserve holding",
		}),
		Sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digikoin_sequence",
			Help: "Last committed operation sequence",
		}),
		ReserveOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digikoin_reserve_ops_total",
				Help: "Reserve hold, buy and redeem operations by result",
			},
			[]string{"op", "result"},
		),
		RoundsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digikoin_rounds_total",
			Help: "Dividend rounds opened",
		}),
		DividendPooled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digikoin_dividend_pooled_total",
			Help: "Currency deposited into dividend rounds",
		}),
		DividendPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digikoin_dividend_paid_total",
			Help: "Currency paid out to dividend claimants",
		}),
		Claims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digikoin_claims_total",
				Help: "Dividend claims by result",
			},
			[]string{"result"},
		),
		OracleRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digikoin_oracle_requests_total",
				Help: "Price oracle reads by pair, source and result",
			},
			[]string{"pair", "source", "result"},
		),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LedgerOps, m.TotalSupply, m.ReserveUnits, m.Sequence, m.ReserveOps,
		m.RoundsOpened, m.DividendPooled, m.DividendPaid, m.Claims, m.OracleRequests,
	}
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// LedgerOp counts a ledger operation.
func (m *Metrics) LedgerOp(op string, err error) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(op, Result(err)).Inc()
}

// LedgerState records supply, reserve balance and sequence after a commit.
func (m *Metrics) LedgerState(supply, reserve amount.Amount, seq uint64) {
	if m == nil {
		return
	}
	m.TotalSupply.Set(supply.Float64())
	m.ReserveUnits.Set(reserve.Float64())
	m.Sequence.Set(float64(seq))
}

// ReserveOp counts a reserve manager operation.
func (m *Metrics) ReserveOp(op string, err error) {
	if m == nil {
		return
	}
	m.ReserveOps.WithLabelValues(op, Result(err)).Inc()
}

// RoundOpened records a funded dividend round.
func (m *Metrics) RoundOpened(pool amount.Amount) {
	if m == nil {
		return
	}
	m.RoundsOpened.Inc()
	m.DividendPooled.Add(pool.Float64())
}

// Claim records a claim attempt and, on success, the amount paid.
func (m *Metrics) Claim(paid amount.Amount, err error) {
	if m == nil {
		return
	}
	m.Claims.WithLabelValues(Result(err)).Inc()
	if err == nil {
		m.DividendPaid.Add(paid.Float64())
	}
}

// OracleRequest counts a price read.
func (m *Metrics) OracleRequest(pair, source string, err error) {
	if m == nil {
		return
	}
	m.OracleRequests.WithLabelValues(pair, source, Result(err)).Inc()
}
