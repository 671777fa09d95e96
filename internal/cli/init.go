package cli

import (
	"fmt"

	"github.com/sourcekit/extmgr/internal/config"
	"github.com/sourcekit/extmgr/internal/userdata"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the extmgr home directory",
	Long: `Create the directories and files extmgr keeps under its home directory:
installed packages, the download spool, the catalog marker and the trust store.

Existing files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Initializing %s\n", config.Dir())

		if err := userdata.InitGlobal(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("initializing home directory: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\n"+Success("Initialized successfully."))
		return nil
	},
}
