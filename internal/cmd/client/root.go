package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the filterlog client.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "filterlog",
		Short: "filterlog client commands",
	}
	root.AddCommand(NewLogsCommand())
	return root
}
