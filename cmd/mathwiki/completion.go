package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docutag/mathwiki"
	"github.com/docutag/mathwiki/competitions"
)

var completionCmd = &cobra.Command{
	Use:     "completion <competition>",
	Short:   "Audit how complete the stored records of a competition are",
	Example: "  mathwiki completion amc8 --store postgres",
	Args:    cobra.ExactArgs(1),
	RunE:    runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	comp, err := competitions.Lookup(args[0])
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := mathwiki.Completion(ctx, st, comp.ID)
	if err != nil {
		return err
	}
	if summary.Exams == 0 {
		return fmt.Errorf("no exams stored for %s", comp.Name)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", comp.Name)
	printSummary(out, summary)
	return nil
}
