package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X ...commands.Version=v1.2.3".
var Version = "0.1.0"

// NewRootCommand assembles the listingkit command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "listingkit",
		Short: "Build, preview and edit AI-generated e-commerce listings",
		Long: `listingkit renders JSON template documents into product, seller and advert
pages. It serves a live preview and editor, validates and fixes documents,
and generates new ones with Gemini, Anthropic or OpenAI-compatible models.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newFixCommand())
	root.AddCommand(newRenderCommand())
	root.AddCommand(newGenerateCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the listingkit version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "listingkit %s\n", Version)
		},
	}
}
