package root

import (
	"github.com/spf13/cobra"

	"github.com/rohitshetty84/multiagent/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.Long())
		},
	}
}
