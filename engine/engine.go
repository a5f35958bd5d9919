// Package engine wires the ledger, oracle, reserve manager, dividend
// distributor and currency book over one bbolt database.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
	"github.com/bitfsorg/digikoin-go/config"
	"github.com/bitfsorg/digikoin-go/dividend"
	"github.com/bitfsorg/digikoin-go/ledger"
	"github.com/bitfsorg/digikoin-go/oracle"
	"github.com/bitfsorg/digikoin-go/payment"
	"github.com/bitfsorg/digikoin-go/reserve"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

// DBFile is the database file name inside the data directory.
const DBFile = "digikoin.db"

// Well-known accounts derived when not configured.
var (
	DefaultOwner     = account.FromLabel("owner")
	DefaultReserve   = account.FromLabel("reserve")
	TreasuryAccount  = account.FromLabel("treasury")
	PoolAccount      = account.FromLabel("dividend-pool")
	CustodianAccount = account.FromLabel("reserve-manager")
)

// Engine is an open ledger with all of its components.
type Engine struct {
	db  *bbolt.DB
	log zerolog.Logger

	Config    config.Config
	Metrics   *telemetry.Metrics
	Gate      auth.Gate // *auth.SignedGate when owner.pubkey is set
	Ledger    *ledger.Ledger
	Oracle    *oracle.Oracle // nil in fixed pricing mode
	Reserve   *reserve.Manager
	Dividends *dividend.Distributor
	Book      *payment.BoltBook

	Owner account.Address
}

type options struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics
	feed    oracle.Feed
	env     map[string]string
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger shared by all components.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics sets the metrics shared by all components.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFeed uses feed instead of a JSON-RPC feed built from the configuration.
func WithFeed(feed oracle.Feed) Option {
	return func(o *options) { o.feed = feed }
}

// WithEnv replaces the process environment when resolving the feed endpoint.
func WithEnv(env map[string]string) Option {
	return func(o *options) { o.env = env }
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Open opens or creates the database in cfg.DataDir and wires the
// components. On first open the genesis supply is minted to the reserve.
func Open(cfg config.Config, opts ...Option) (*Engine, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.env == nil {
		o.env = Environ()
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	gate, owner, err := newGate(cfg)
	if err != nil {
		return nil, err
	}
	reserveAddr, err := addressOr(cfg.ReserveAddress, DefaultReserve)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("engine: create data directory: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(cfg.DataDir, DBFile), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("engine: open database: %w", err)
	}

	e, err := wire(db, cfg, o, gate, owner, reserveAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := e.genesis(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// localGate is a gate that can hold unsigned grants for in-process
// components.
type localGate interface {
	auth.Gate
	Grant(role auth.Role, addr account.Address)
}

// newGate returns a SignedGate when owner.pubkey is configured, and a
// StaticGate over owner.address otherwise. The custodian account always holds
// RoleCustodian.
func newGate(cfg config.Config) (localGate, account.Address, error) {
	var (
		gate  localGate
		owner account.Address
	)
	if cfg.OwnerPubKey != "" {
		pub, err := ec.PublicKeyFromString(cfg.OwnerPubKey)
		if err != nil {
			return nil, account.Zero, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		signed, err := auth.NewSignedGate(pub)
		if err != nil {
			return nil, account.Zero, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		gate, owner = signed, signed.Owner()
	} else {
		addr, err := addressOr(cfg.OwnerAddress, DefaultOwner)
		if err != nil {
			return nil, account.Zero, err
		}
		gate, owner = auth.NewStaticGate(addr), addr
	}
	gate.Grant(auth.RoleCustodian, CustodianAccount)
	return gate, owner, nil
}

func addressOr(s string, def account.Address) (account.Address, error) {
	if s == "" {
		return def, nil
	}
	addr, err := account.Parse(s)
	if err != nil {
		return account.Zero, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return addr, nil
}

func wire(db *bbolt.DB, cfg config.Config, o options, gate auth.Gate, owner, reserveAddr account.Address) (*Engine, error) {
	ledgerStore, err := ledger.NewBoltStore(db)
	if err != nil {
		return nil, err
	}
	dividendStore, err := dividend.NewBoltStore(db)
	if err != nil {
		return nil, err
	}
	book, err := payment.NewBoltBook(db)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		db:      db,
		log:     o.log,
		Config:  cfg,
		Metrics: o.metrics,
		Gate:    gate,
		Book:    book,
		Owner:   owner,
	}

	e.Ledger = ledger.New(ledgerStore, gate, reserveAddr,
		ledger.WithLogger(o.log), ledger.WithMetrics(o.metrics))

	var quoter reserve.Quoter
	if cfg.Pricing != "fixed" {
		e.Oracle, err = newOracle(cfg, o)
		if err != nil {
			return nil, err
		}
		quoter = e.Oracle
	}
	e.Reserve = reserve.New(e.Ledger, quoter, book, TreasuryAccount, auth.As(CustodianAccount),
		reserve.WithLogger(o.log), reserve.WithMetrics(o.metrics))

	policy, err := dividend.ParseFundingPolicy(cfg.FundingPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.Dividends = dividend.New(e.Ledger, dividendStore, book, PoolAccount, gate,
		dividend.WithFundingPolicy(policy),
		dividend.WithLogger(o.log), dividend.WithMetrics(o.metrics))
	return e, nil
}

func newOracle(cfg config.Config, o options) (*oracle.Oracle, error) {
	sources := map[oracle.Pair]oracle.Source{
		oracle.PairETHUSD: {Ref: cfg.FeedETHUSD, Default: oracle.DefaultETHUSD},
		oracle.PairXAUUSD: {Ref: cfg.FeedXAUUSD, Default: oracle.DefaultXAUUSD},
	}
	feed := o.feed
	if feed == nil && (cfg.FeedETHUSD != "" || cfg.FeedXAUUSD != "") {
		feedCfg, err := oracle.ResolveFeedConfig(&oracle.FeedConfig{URL: cfg.FeedURL}, o.env, cfg.Network)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		feed = oracle.NewRPCFeed(*feedCfg)
	}
	return oracle.New(feed,
		oracle.WithSources(sources),
		oracle.WithDecimals(cfg.OracleDecimals),
		oracle.WithMaxAge(cfg.OracleMaxAge),
		oracle.WithLogger(o.log),
		oracle.WithMetrics(o.metrics),
	), nil
}

// genesis mints the configured supply to the reserve if nothing has been
// committed yet.
func (e *Engine) genesis() error {
	seq, err := e.Ledger.Sequence()
	if err != nil {
		return err
	}
	if seq != 0 {
		return nil
	}
	supply, err := amount.Parse(e.Config.GenesisSupply)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := e.Ledger.Mint(auth.As(e.Owner), e.Ledger.Reserve(), supply); err != nil {
		return fmt.Errorf("engine: genesis: %w", err)
	}
	e.log.Info().Str("supply", supply.String()).Stringer("reserve", e.Ledger.Reserve()).Msg("genesis")
	return nil
}

// Status is a summary of the ledger.
type Status struct {
	Sequence    uint64
	TotalSupply amount.Amount
	Reserve     amount.Amount
	Circulating amount.Amount
	Rounds      int
	Treasury    amount.Amount // currency collected by the reserve manager
	Pool        amount.Amount // currency held for dividends
}

// Status reads the current summary.
func (e *Engine) Status() (Status, error) {
	if e.db == nil {
		return Status{}, ErrClosed
	}
	var (
		st  Status
		err error
	)
	if st.Sequence, err = e.Ledger.Sequence(); err != nil {
		return Status{}, err
	}
	if st.TotalSupply, err = e.Ledger.TotalSupply(); err != nil {
		return Status{}, err
	}
	if st.Reserve, err = e.Reserve.ReserveBalance(); err != nil {
		return Status{}, err
	}
	if st.Circulating, err = e.Reserve.Circulating(); err != nil {
		return Status{}, err
	}
	rounds, err := e.Dividends.Rounds()
	if err != nil {
		return Status{}, err
	}
	st.Rounds = len(rounds)
	if st.Treasury, err = e.Book.BalanceOf(TreasuryAccount); err != nil {
		return Status{}, err
	}
	if st.Pool, err = e.Book.BalanceOf(PoolAccount); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Close closes the database.
func (e *Engine) Close() error {
	if e.db == nil {
		return ErrClosed
	}
	err := e.db.Close()
	e.db = nil
	return err
}
