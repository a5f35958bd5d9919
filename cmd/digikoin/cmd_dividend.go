package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/digikoin-go/dividend"
)

func newDistributeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "distribute <currency>",
		Short: "Deposit currency into a new dividend round",
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
			r, err := e.Dividends.Distribute(cmd.Context(), c, cur)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "round %d: pool %s over %s circulating units at seq %d\n",
				r.ID, r.Pool, r.CirculatingSupply, r.SnapshotSequence)
			return nil
		},
	}
}

func newClaimCmd(g *globals) *cobra.Command {
	var (
		round uint64
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim dividends for one round or all open rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == cmd.Flags().Changed("round") {
				return errors.New("pass exactly one of --round or --all")
			}
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			c, err := g.capability(e)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if all {
				payouts, err := e.Dividends.ClaimAll(cmd.Context(), c)
				for _, p := range payouts {
					fmt.Fprintf(w, "round %d: paid %s\n", p.RoundID, p.Amount)
				}
				if errors.Is(err, dividend.ErrNothingToClaim) {
					fmt.Fprintln(w, "nothing to claim")
					return nil
				}
				return err
			}
			paid, err := e.Dividends.Claim(cmd.Context(), c, round)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "round %d: paid %s\n", round, paid)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&round, "round", 0, "round to claim")
	cmd.Flags().BoolVar(&all, "all", false, "claim every round with an entitlement")
	return cmd
}

func newRoundsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rounds",
		Short: "List dividend rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			rounds, err := e.Dividends.Rounds()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROUND\tSEQ\tPOOL\tPAID\tCLAIMS\tCIRCULATING\tCREATED")
			for _, r := range rounds {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.SnapshotSequence, r.Pool, r.Paid, r.Claims, r.CirculatingSupply,
					r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newAllocationCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "allocation <round>",
		Short: "Show every holder's entitlement in a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid round %q: %w", args[0], err)
			}
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			lines, dust, err := e.Dividends.Allocation(id)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HOLDER\tBALANCE\tENTITLEMENT\tSTATUS")
			for _, l := range lines {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Holder, l.Balance, l.Amount, l.Status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dust: %s\n", dust)
			return nil
		},
	}
}

// newPendingCmd lists claims whose payment was sent but never confirmed.
// Each needs to be reconciled against the currency book by hand.
func newPendingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List dividend claims paid but not finalized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, done, err := g.openEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			claims, err := e.Dividends.PendingClaims()
			if err != nil {
				return err
			}
			if len(claims) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending claims")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROUND\tHOLDER\tAMOUNT")
			for _, c := range claims {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", c.RoundID, c.Holder, c.Amount)
			}
			return tw.Flush()
		},
	}
}
