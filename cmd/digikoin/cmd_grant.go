package main

import (
	"errors"
	"fmt"
	"os"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/digikoin-go/auth"
)

// ownerKeyEnv names the variable read when --key is not given.
const ownerKeyEnv = "DIGIKOIN_OWNER_KEY"

func newGrantCmd() *cobra.Command {
	var keyHex string
	cmd := &cobra.Command{
		Use:   "grant <role> <holder>",
		Short: "Sign a role grant with the owner key",
		Long: `grant signs a grant of role (minter, distributor or custodian) to holder
with the owner's private key and prints it. The holder presents it with
--grant when the ledger is configured with owner.pubkey.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyHex == "" {
				keyHex = os.Getenv(ownerKeyEnv)
			}
			if keyHex == "" {
				return errors.New("no owner key: pass --key or set " + ownerKeyEnv)
			}
			priv, err := ec.PrivateKeyFromHex(keyHex)
			if err != nil {
				return fmt.Errorf("invalid owner key: %w", err)
			}
			role, err := auth.ParseRole(args[0])
			if err != nil {
				return err
			}
			holder, err := parseAccount(args[1])
			if err != nil {
				return err
			}
			grant, err := auth.IssueGrant(priv, role, holder)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.FormatGrant(grant))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "owner private key in hex (default $"+ownerKeyEnv+")")
	return cmd
}
