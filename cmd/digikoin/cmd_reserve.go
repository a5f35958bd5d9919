package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/reserve"
)

func newQuoteCmd(g *globals) *cobra.Command {
	var units bool
	cmd := &cobra.Command{
		Use:   "quote <amount>",
		Short: "Quote units for a currency amount, or the cost of units with --units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			amt, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if e.Oracle != nil {
				for _, pair := range e.Oracle.Pairs() {
					q, err := e.Oracle.Rate(cmd.Context(), pair)
					if err != nil {
						return err
					}
					price, err := q.Price()
					if err != nil {
						return err
					}
					src := "feed"
					if q.Fallback {
						src = "default"
					}
					fmt.Fprintf(w, "%-8s %s (%s)\n", pair, price, src)
				}
			}
			if units {
				cost, err := e.Reserve.QuoteCurrencyForUnits(cmd.Context(), amt, amount.Ceil)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s units cost %s\n", amt, cost)
				return nil
			}
			got, err := e.Reserve.QuoteUnitsForCurrency(cmd.Context(), amt)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s buys %s units\n", amt, got)
			return nil
		},
	}
	cmd.Flags().BoolVar(&units, "units", false, "treat the amount as units and quote its currency cost")
	return cmd
}

func newFundCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <account> <currency>",
		Short: "Credit reference currency to an account (testnet and regtest only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			if e.Config.Network == "mainnet" {
				return errors.New("fund is disabled on mainnet")
			}
			addr, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			amt, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			if err := e.Book.Credit(addr, amt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credited %s to %s\n", amt, addr)
			return nil
		},
	}
}

func printPurchase(cmd *cobra.Command, p reserve.Purchase) {
	fmt.Fprintf(cmd.OutOrStdout(), "received %s units for %s (cost %s, seq %d)\n", p.Units, p.Paid, p.Cost, p.Receipt.Sequence)
}

func newHoldCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "hold <units> <currency>",
		Short: "Buy an exact number of units, remitting up to the given currency",
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
			units, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			remitted, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			p, err := e.Reserve.Hold(cmd.Context(), c, units, remitted)
			if err != nil {
				return err
			}
			printPurchase(cmd, p)
			return nil
		},
	}
}

func newBuyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <currency>",
		Short: "Spend currency on as many units as it buys",
		Args:  cobra.ExactArgs(1),
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
			cur, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			p, err := e.Reserve.Buy(cmd.Context(), c, cur)
			if err != nil {
				return err
			}
			printPurchase(cmd, p)
			return nil
		},
	}
}

func newRedeemCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <units>",
		Short: "Return units to the reserve",
		Args:  cobra.ExactArgs(1),
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
			units, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			rc, err := e.Reserve.Redeem(cmd.Context(), c, units)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redeemed %s units (seq %d)\n", units, rc.Sequence)
			return nil
		},
	}
}
