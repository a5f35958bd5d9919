package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/digikoin-go/config"
	"github.com/bitfsorg/digikoin-go/engine"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

func newInitCmd(g *globals) *cobra.Command {
	var (
		supply  string
		pricing string
		policy  string
		network string
		pubkey  string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration and mint the genesis supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			path := g.configPath
			if path == "" {
				path = config.ConfigPath(cfg.DataDir)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if supply != "" {
				cfg.GenesisSupply = supply
			}
			if pricing != "" {
				cfg.Pricing = pricing
			}
			if policy != "" {
				cfg.FundingPolicy = policy
			}
			if network != "" {
				cfg.Network = network
			}
			if pubkey != "" {
				cfg.OwnerPubKey = pubkey
			}
			if err := config.ValidateConfig(cfg); err != nil {
				return err
			}
			if err := config.SaveConfig(path, cfg); err != nil {
				return err
			}

			g.configPath = path
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()
			fmt.Fprintf(cmd.OutOrStdout(), "config:   %s\n", path)
			return printStatus(cmd, e)
		},
	}
	f := cmd.Flags()
	f.StringVar(&supply, "supply", "", "genesis supply in whole units")
	f.StringVar(&pricing, "pricing", "", "pricing mode: oracle or fixed")
	f.StringVar(&policy, "policy", "", "dividend funding policy: owner or open")
	f.StringVar(&network, "network", "", "network: mainnet, testnet or regtest")
	f.StringVar(&pubkey, "owner-pubkey", "", "owner public key in hex; role grants must then be signed by it")
	f.BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show supply, reserve and dividend summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()
			return printStatus(cmd, e)
		},
	}
}

func printStatus(cmd *cobra.Command, e *engine.Engine) error {
	st, err := e.Status()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "network:     %s\n", e.Config.Network)
	fmt.Fprintf(w, "pricing:     %s\n", e.Config.Pricing)
	fmt.Fprintf(w, "owner:       %s\n", e.Owner)
	fmt.Fprintf(w, "sequence:    %d\n", st.Sequence)
	fmt.Fprintf(w, "supply:      %s\n", st.TotalSupply)
	fmt.Fprintf(w, "reserve:     %s\n", st.Reserve)
	fmt.Fprintf(w, "circulating: %s\n", st.Circulating)
	fmt.Fprintf(w, "treasury:    %s\n", st.Treasury)
	fmt.Fprintf(w, "rounds:      %d\n", st.Rounds)
	fmt.Fprintf(w, "pool:        %s\n", st.Pool)
	return nil
}

func newServeCmd(g *globals) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose ledger metrics over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()
			metrics, err := telemetry.NewMetrics(reg)
			if err != nil {
				return err
			}
			e, done, err := g.openEngine(cmd, engine.WithMetrics(metrics))
			if err != nil {
				return err
			}
			defer done()

			if listen == "" {
				listen = e.Config.ListenAddr
			}
			if listen == "" {
				return errors.New("no listen address (set listen in the configuration or pass --metrics-addr)")
			}

			st, err := e.Status()
			if err != nil {
				return err
			}
			metrics.LedgerState(st.TotalSupply, st.Reserve, st.Sequence)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()
			fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s\n", ln.Addr())

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "metrics-addr", "", "metrics listen address (overrides listen in the configuration)")
	return cmd
}

func newBalanceCmd(g *globals) *cobra.Command {
	var at uint64
	cmd := &cobra.Command{
		Use:   "balance [account]",
		Short: "Show unit and currency balances of an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			addr, err := g.caller(e)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if addr, err = parseAccount(args[0]); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if cmd.Flags().Changed("at") {
				units, err := e.Ledger.BalanceAt(addr, at)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "account: %s\nunits@%d: %s\n", addr, at, units)
				return nil
			}
			units, err := e.Ledger.BalanceOf(addr)
			if err != nil {
				return err
			}
			cur, err := e.Book.BalanceOf(addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "account:  %s\nunits:    %s\ncurrency: %s\n", addr, units, cur)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&at, "at", 0, "show the unit balance as of this sequence")
	return cmd
}

func newTransferCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <to> <units>",
		Short: "Transfer units from the acting account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			c, err := g.capability(e)
			if err != nil {
				return err
			}
			to, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			amt, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			rc, err := e.Ledger.Transfer(c, c.Caller, to, amt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transferred %s to %s (seq %d, receipt %s)\n", amt, to, rc.Sequence, rc.ID)
			return nil
		},
	}
}
