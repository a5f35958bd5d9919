// Command digikoin operates a local DigiKoin ledger: the reserve, the price
// oracle and dividend rounds, stored in a bbolt database in the data
// directory.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
	"github.com/bitfsorg/digikoin-go/config"
	"github.com/bitfsorg/digikoin-go/engine"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	dataDir    string
	configPath string
	as         string
	logLevel   string
	grants     []string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "digikoin",
		Short: "Reserve-backed token ledger",
		Long: `digikoin manages a token ledger whose supply is minted into a reserve
holding and sold against a reference currency at oracle prices. Holders
receive dividends pro rata to their balance at each round's snapshot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.dataDir, "datadir", "", "data directory (default ~/.digikoin)")
	pf.StringVar(&g.configPath, "config", "", "configuration file (default <datadir>/config)")
	pf.StringVar(&g.as, "as", "", "acting account: address, hex hash160 or label")
	pf.StringVar(&g.logLevel, "loglevel", "", "log level: debug, info, warn, error")
	pf.StringArrayVar(&g.grants, "grant", nil, "owner-signed role grant presented by the acting account (repeatable)")

	root.AddCommand(
		newInitCmd(g),
		newStatusCmd(g),
		newServeCmd(g),
		newBalanceCmd(g),
		newTransferCmd(g),
		newQuoteCmd(g),
		newFundCmd(g),
		newHoldCmd(g),
		newBuyCmd(g),
		newRedeemCmd(g),
		newDistributeCmd(g),
		newClaimCmd(g),
		newRoundsCmd(g),
		newAllocationCmd(g),
		newPendingCmd(g),
		newGrantCmd(),
	)
	return root
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, and applies flag overrides.
func (g *globals) loadConfig() (config.Config, error) {
	dataDir := g.dataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	path := g.configPath
	if path == "" {
		path = config.ConfigPath(dataDir)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	if g.dataDir != "" || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

// logger builds the process logger. Console output goes to stderr so that
// command output on stdout stays parseable.
func logger(cfg config.Config, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.LogFile, stderr)
}

// openEngine loads the configuration and opens the engine. The caller must
// call the returned cleanup.
func (g *globals) openEngine(cmd *cobra.Command, opts ...engine.Option) (*engine.Engine, func(), error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, closer, err := logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.Open(cfg, append([]engine.Option{engine.WithLogger(log)}, opts...)...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return e, func() {
		if err := e.Close(); err != nil {
			log.Warn().Err(err).Msg("close engine")
		}
		_ = closer.Close()
	}, nil
}

// caller resolves --as, defaulting to the ledger owner.
func (g *globals) caller(e *engine.Engine) (account.Address, error) {
	if g.as == "" {
		return e.Owner, nil
	}
	return parseAccount(g.as)
}

// capability resolves --as and attaches every --grant.
func (g *globals) capability(e *engine.Engine) (auth.Capability, error) {
	caller, err := g.caller(e)
	if err != nil {
		return auth.Capability{}, err
	}
	c := auth.As(caller)
	for _, text := range g.grants {
		grant, err := auth.ParseGrant(text)
		if err != nil {
			return auth.Capability{}, err
		}
		c.Grants = append(c.Grants, grant)
	}
	return c, nil
}

// parseAccount accepts an address or hex hash160, and otherwise derives the
// account from s as a label.
func parseAccount(s string) (account.Address, error) {
	if s == "" {
		return account.Zero, fmt.Errorf("empty account")
	}
	if addr, err := account.Parse(s); err == nil {
		return addr, nil
	}
	return account.FromLabel(s), nil
}

func parseAmount(s string) (amount.Amount, error) {
	a, err := amount.Parse(s)
	if err != nil {
		return amount.Zero(), fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return a, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
