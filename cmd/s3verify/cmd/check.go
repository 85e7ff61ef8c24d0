package cmd

import (
	"github.com/spf13/cobra"
)

func check(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	verifier, err := newVerifier(ctx)
	if err != nil {
		return err
	}

	result, err := verifier.Check(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	printResult(result)
	return resultError(result)
}

func checkAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	verifier, err := newVerifier(ctx)
	if err != nil {
		return err
	}

	var keyPrefix string
	if len(args) > 2 {
		keyPrefix = args[2]
	}

	results, err := verifier.CheckAll(ctx, args[0], args[1], keyPrefix)
	if err != nil {
		return err
	}

	var matched int
	for _, result := range results {
		if result.Verified() {
			matched++
		}
	}
	logger.Println()
	logger.Infof("%d of %d files verified", matched, len(results))

	return resultError(results...)
}

var checkCmd = &cobra.Command{
	Use:   "check <file> <key>",
	Short: "Compares a local file with an S3 object.",
	Args:  cobra.ExactArgs(2),
	RunE:  check,
}

var checkAllCmd = &cobra.Command{
	Use:   "check-all <dir> <pattern> [key-prefix]",
	Short: "Compares every file matching a glob pattern (** supported) with the object at key-prefix/<relative path>.",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  checkAll,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(checkAllCmd)
}
