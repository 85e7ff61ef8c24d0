package cmd

import (
	"fmt"

	"github.com/bitrise-io/go-s3verify/verify"
	"github.com/spf13/cobra"
)

func sum(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateLocal(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	verifier := verify.NewVerifier(nil, logger, verifierOptions(cfg))
	for _, path := range args {
		value, err := verifier.Sum(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s  %s\n", value, path)
	}

	return nil
}

var sumCmd = &cobra.Command{
	Use:   "sum <file>...",
	Short: "Prints the checksum S3 would report for the files uploaded with the configured part size.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  sum,
}

func init() {
	rootCmd.AddCommand(sumCmd)
}
