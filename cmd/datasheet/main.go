package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:           "datasheet",
		Short:         "Evaluate computed and filter columns of a workbook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntP("verbosity", "v", 0, "log verbosity, higher is chattier")
	root.PersistentFlags().Bool("log-dev", false, "human readable development logging")
	root.PersistentFlags().String("format", "text", "format results, 'text' or 'csv'")
	addCommands(root)
	if err := root.Execute(); err != nil {
		fatal("%s", err.Error())
	}
	os.Exit(0)
}
