// Command editorctl runs the editor's content pipeline from the terminal:
// round-trip checks of stored articles, image compression and embed previews.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var outputFormat string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "editorctl",
		Short:         "Inspect how the newsroom editor stores content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")

	root.AddCommand(newRoundtripCommand())
	root.AddCommand(newCompressCommand())
	root.AddCommand(newEmbedCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
