package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/scribo"

// Version is the release version. Release builds override it with
// -ldflags "-X github.com/mesh-intelligence/scribo/internal/cli.Version=...".
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scribo version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "scribo v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
