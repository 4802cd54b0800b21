package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/docutag/mathwiki"
	"github.com/docutag/mathwiki/competitions"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <competition> <year> <problem>",
	Short: "Print one stored problem record",
	Example: `  mathwiki verify amc8 2024 1
  mathwiki verify amc12a 2023 25 --store mongo`,
	Args: cobra.ExactArgs(3),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	comp, err := competitions.Lookup(args[0])
	if err != nil {
		return err
	}
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", args[1], err)
	}
	number, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid problem number %q: %w", args[2], err)
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

	p, err := mathwiki.Verify(ctx, st, comp.ID, year, number)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), p)
}
