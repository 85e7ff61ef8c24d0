package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-s3verify/config"
	"github.com/bitrise-io/go-s3verify/s3object"
	"github.com/bitrise-io/go-s3verify/verify"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
)

// Exit codes besides 0 (verified) and 1 (error).
const (
	exitCodeMismatch = 2
	exitCodeUnknown  = 3
)

var (
	logger  = log.NewLogger()
	envRepo = env.NewRepository()
)

var (
	bucketFlag      string
	regionFlag      string
	algorithmFlag   string
	partSizeFlag    string
	thresholdFlag   string
	retriesFlag     uint
	concurrencyFlag int
	verboseFlag     bool
)

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:           "s3verify",
	Short:         "Verifies local files against the checksums S3 stores for (multipart) objects.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.EnableDebugLog(verboseFlag)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&bucketFlag, "bucket", "", "S3 bucket (default $"+config.BucketEnvKey+")")
	flags.StringVar(&regionFlag, "region", "", "AWS region (default $"+config.RegionEnvKey+")")
	flags.StringVar(&algorithmFlag, "algorithm", string(config.DefaultAlgorithm), "checksum algorithm: CRC32, CRC32C, SHA1 or SHA256")
	flags.StringVar(&partSizeFlag, "part-size", "8MiB", "multipart upload part size")
	flags.StringVar(&thresholdFlag, "threshold", "", "size from which local checksums use the multipart format (default: part size)")
	flags.UintVar(&retriesFlag, "retries", config.DefaultNumRetries, "number of retries of S3 requests")
	flags.IntVar(&concurrencyFlag, "concurrency", config.DefaultConcurrency(), "number of files checked in parallel")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logs")
}

// Execute runs the root command and exits with a status reflecting the result.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}

		logger.Errorf("%s", err)
		if errors.Is(err, checksum.ErrInvalidUsage) {
			logger.Errorf("This is a bug or the object metadata is inconsistent, please report it.")
		}
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.FromEnv(envRepo)

	if bucketFlag != "" {
		cfg.Bucket = bucketFlag
	}
	if regionFlag != "" {
		cfg.Region = regionFlag
	}

	algorithm, err := checksum.ParseAlgorithm(algorithmFlag)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Algorithm = algorithm

	partSize, err := config.ParseSize(partSizeFlag)
	if err != nil {
		return config.Config{}, fmt.Errorf("part size: %w", err)
	}
	cfg.PartSize = partSize
	cfg.Threshold = partSize

	if thresholdFlag != "" {
		threshold, err := config.ParseSize(thresholdFlag)
		if err != nil {
			return config.Config{}, fmt.Errorf("threshold: %w", err)
		}
		cfg.Threshold = threshold
	}

	cfg.NumRetries = retriesFlag
	cfg.Concurrency = concurrencyFlag
	cfg.Verbose = verboseFlag

	return cfg, nil
}

func verifierOptions(cfg config.Config) verify.Options {
	return verify.Options{
		Algorithm:   cfg.Algorithm,
		PartSize:    cfg.PartSize,
		Threshold:   cfg.Threshold,
		Concurrency: cfg.Concurrency,
	}
}

func newVerifier(ctx context.Context) (*verify.Verifier, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Debugf("Bucket: %s, region: %s, access key: %s", cfg.Bucket, cfg.Region, cfg.AccessKeyID)

	awsCfg, err := s3object.LoadAWSConfig(ctx, cfg.Region, string(cfg.AccessKeyID), string(cfg.SecretAccessKey), logger)
	if err != nil {
		return nil, err
	}

	service, err := s3object.NewService(*awsCfg, s3object.Params{
		Bucket:     cfg.Bucket,
		NumRetries: cfg.NumRetries,
	}, logger)
	if err != nil {
		return nil, err
	}

	return verify.NewVerifier(service, logger, verifierOptions(cfg)), nil
}

func resultError(results ...verify.Result) error {
	code := 0
	for _, result := range results {
		switch result.Status {
		case verify.StatusMismatch:
			code = exitCodeMismatch
		case verify.StatusUnknown:
			if code == 0 {
				code = exitCodeUnknown
			}
		}
	}

	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}

func printResult(result verify.Result) {
	logger.Println()
	logger.Printf("Path:   %s", result.Path)
	logger.Printf("Key:    %s", result.Key)
	logger.Printf("Local:  %s", result.Local)
	logger.Printf("Remote: %s", result.Remote)

	switch result.Status {
	case verify.StatusMatch:
		logger.Donef("Verified: %s", result.Reason)
	case verify.StatusMismatch:
		logger.Errorf("Mismatch: %s", result.Reason)
	default:
		logger.Warnf("Could not verify: %s", result.Reason)
	}
}
