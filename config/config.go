// Package config holds the settings shared by the s3verify commands.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"
)

// Environment variables read by FromEnv.
const (
	RegionEnvKey          = "AWS_REGION"
	AccessKeyIDEnvKey     = "AWS_ACCESS_KEY_ID"
	SecretAccessKeyEnvKey = "AWS_SECRET_ACCESS_KEY"
	BucketEnvKey          = "S3VERIFY_BUCKET"
)

// Defaults ...
const (
	DefaultAlgorithm  = checksum.SHA256
	DefaultPartSize   = 8 * 1024 * 1024
	DefaultNumRetries = 3

	// MaxPartSize is the largest part S3 accepts in a multipart upload.
	MaxPartSize = 5 * 1024 * 1024 * 1024
)

// Secret hides its value when printed.
type Secret string

// String ...
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 5)
}

// Config ...
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     Secret
	SecretAccessKey Secret
	Algorithm       checksum.Algorithm
	PartSize        int64
	// Threshold only affects locally computed checksums. Uploads always
	// follow the upload manager, which starts multipart above one part.
	Threshold   int64
	NumRetries  uint
	Concurrency int
	Verbose     bool
}

// Default ...
func Default() Config {
	return Config{
		Algorithm:   DefaultAlgorithm,
		PartSize:    DefaultPartSize,
		Threshold:   DefaultPartSize,
		NumRetries:  DefaultNumRetries,
		Concurrency: DefaultConcurrency(),
	}
}

// FromEnv returns the default config completed with the values found in envRepo.
func FromEnv(envRepo env.Repository) Config {
	cfg := Default()
	cfg.Bucket = envRepo.Get(BucketEnvKey)
	cfg.Region = envRepo.Get(RegionEnvKey)
	cfg.AccessKeyID = Secret(envRepo.Get(AccessKeyIDEnvKey))
	cfg.SecretAccessKey = Secret(envRepo.Get(SecretAccessKeyEnvKey))
	return cfg
}

// ValidateLocal checks the settings needed to compute checksums without
// talking to S3.
func (c Config) ValidateLocal() error {
	if err := checksum.ValidateAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if c.PartSize < manager.MinUploadPartSize {
		return fmt.Errorf("part size must be at least %s, got %s", units.BytesSize(float64(manager.MinUploadPartSize)), units.BytesSize(float64(c.PartSize)))
	}
	if c.PartSize > MaxPartSize {
		return fmt.Errorf("part size must be at most %s, got %s", units.BytesSize(MaxPartSize), units.BytesSize(float64(c.PartSize)))
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative")
	}
	return nil
}

// Validate ...
func (c Config) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("bucket must not be empty, set --bucket or %s", BucketEnvKey)
	}
	if strings.TrimSpace(c.Region) == "" {
		return fmt.Errorf("region must not be empty, set --region or %s", RegionEnvKey)
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%s and %s must be set together", AccessKeyIDEnvKey, SecretAccessKeyEnvKey)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// ParseSize parses a plain byte count or a human readable size such as 8MiB or 16MB.
func ParseSize(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}

	if strings.HasSuffix(strings.ToLower(value), "ib") {
		// 8MiB, 1GiB
		size, err := units.RAMInBytes(value[:len(value)-2])
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", value, err)
		}
		return size, nil
	}

	size, err := units.FromHumanSize(value)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", value, err)
	}
	return size, nil
}

// DefaultConcurrency calculates the default concurrency based on CPU count.
func DefaultConcurrency() int {
	c := runtime.NumCPU() * 3

	if c > 20 {
		c = 20
	}

	if c < 2 {
		c = 2
	}

	return c
}
