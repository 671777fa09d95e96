package cli

import (
	"context"
	"fmt"

	"github.com/sourcekit/extmgr/internal/trust"
	"github.com/sourcekit/extmgr/internal/userdata"
	"github.com/spf13/cobra"
)

func init() {
	trustCmd.AddCommand(trustAddCmd)
	trustCmd.AddCommand(trustListCmd)
	trustCmd.AddCommand(trustRevokeCmd)
	rootCmd.AddCommand(trustCmd)
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage trusted extension signers",
	Long: `Manage the set of signing keys whose extensions may be loaded.

Signatures are identified by the SHA-256 of the signer's public key, as shown
by 'list' for untrusted extensions.`,
}

var trustAddCmd = &cobra.Command{
	Use:   "add <signature>",
	Short: "Trust a signature and load the extensions signed with it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		before, err := a.snapshot()
		if err != nil {
			return err
		}
		if err := a.reg.TrustSignature(ctx, args[0]); err != nil {
			return err
		}
		after, err := a.snapshot()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Trusted %s\n", args[0])
		for _, u := range before.Untrusted {
			if u.SignatureHash != args[0] {
				continue
			}
			loaded := false
			for _, ext := range after.Installed {
				if ext.PkgName == u.PkgName {
					loaded = true
					break
				}
			}
			if loaded {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", Success("loaded"), u.PkgName)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", Error("failed"), u.PkgName)
			}
		}
		return nil
	},
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted signatures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trust.Open(userdata.GetTrustFilePath())
		if err != nil {
			return fmt.Errorf("opening trust store: %w", err)
		}
		hashes := store.List()
		if len(hashes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No trusted signatures.")
			return nil
		}
		for _, h := range hashes {
			fmt.Fprintln(cmd.OutOrStdout(), h)
		}
		return nil
	},
}

var trustRevokeCmd = &cobra.Command{
	Use:   "revoke <signature>",
	Short: "Stop trusting a signature",
	Long: `Remove a signature from the trusted set. Extensions signed with it stay
installed but are no longer loaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trust.Open(userdata.GetTrustFilePath())
		if err != nil {
			return fmt.Errorf("opening trust store: %w", err)
		}
		if err := store.Revoke(args[0]); err != nil {
			return fmt.Errorf("revoking signature: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
		return nil
	},
}
