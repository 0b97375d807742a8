package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mcp-tools-go/internal/arithmetic"
)

type calcOptions struct {
	precision string
}

func newCalcCmd(root *rootOptions) *cobra.Command {
	opts := &calcOptions{}

	calcCmd := &cobra.Command{
		Use:   "calc",
		Short: "Evaluate add or subtract locally",
		Long: `Evaluate a single operation with the same evaluator the add and
subtract tools use. The precision comes from --precision, or from
NUMBER_PRECISION when the flag is not set.`,
	}
	calcCmd.PersistentFlags().StringVarP(&opts.precision, "precision", "p", "", "fractional digits to round to (default: NUMBER_PRECISION)")

	for _, op := range []arithmetic.Operation{arithmetic.OpAdd, arithmetic.OpSubtract} {
		calcCmd.AddCommand(&cobra.Command{
			Use:   op.String() + " A B",
			Short: fmt.Sprintf("Print the rounded result of %s", op),
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCalc(cmd, root, opts, op, args)
			},
		})
	}

	return calcCmd
}

func runCalc(cmd *cobra.Command, root *rootOptions, opts *calcOptions, op arithmetic.Operation, args []string) error {
	cfg, logger := loadConfig(cmd, root)

	precision := cfg.Precision
	if cmd.Flags().Changed("precision") {
		var usedDefault bool
		precision, usedDefault = arithmetic.ResolvePrecision(opts.precision)
		if usedDefault {
			logger.Warn().
				Str("setting", "--precision").
				Str("value", opts.precision).
				Int("default", precision.Int()).
				Msg("Invalid setting, using default")
		}
	}

	a, err := arithmetic.ParseOperand(args[0])
	if err != nil {
		return fmt.Errorf("operand A: %w", err)
	}
	b, err := arithmetic.ParseOperand(args[1])
	if err != nil {
		return fmt.Errorf("operand B: %w", err)
	}

	result, err := arithmetic.NewEvaluator(precision, logger).Evaluate(op, a, b)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(result, 'f', -1, 64))
	return nil
}
