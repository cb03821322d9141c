package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "mockinterview",
	Short:        "Practice spoken interviews on your own microphone and speakers",
	SilenceUsage: true,
	Long: `mockinterview asks interview questions out loud, records each spoken
answer, transcribes it and reports delivery metrics and a score per answer.

Press Enter when you have finished an answer. Ctrl-C ends the interview
early and prints the answers collected so far.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
