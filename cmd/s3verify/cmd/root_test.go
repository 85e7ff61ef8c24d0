package cmd

import (
	"testing"

	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-s3verify/config"
	"github.com/bitrise-io/go-s3verify/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	var values []string
	for k, v := range repo.envVars {
		values = append(values, k+"="+v)
	}
	return values
}

func Test_resultError(t *testing.T) {
	match := verify.Result{Status: verify.StatusMatch}
	mismatch := verify.Result{Status: verify.StatusMismatch}
	unknown := verify.Result{Status: verify.StatusUnknown}

	tests := []struct {
		name     string
		results  []verify.Result
		wantCode int
	}{
		{name: "all verified", results: []verify.Result{match, match}, wantCode: 0},
		{name: "no results", results: nil, wantCode: 0},
		{name: "unknown", results: []verify.Result{match, unknown}, wantCode: exitCodeUnknown},
		{name: "mismatch", results: []verify.Result{mismatch}, wantCode: exitCodeMismatch},
		{name: "mismatch wins over unknown", results: []verify.Result{unknown, mismatch, unknown}, wantCode: exitCodeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resultError(tt.results...)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}

			var exitErr *exitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.wantCode, exitErr.code)
		})
	}
}

func Test_loadConfig(t *testing.T) {
	origRepo := envRepo
	defer func() {
		envRepo = origRepo
		bucketFlag, regionFlag, algorithmFlag, partSizeFlag, thresholdFlag = "", "", "", "", ""
	}()

	envRepo = fakeEnvRepo{envVars: map[string]string{
		config.BucketEnvKey: "env-bucket",
		config.RegionEnvKey: "us-east-1",
	}}

	t.Run("flags override the environment", func(t *testing.T) {
		bucketFlag = "flag-bucket"
		algorithmFlag = "crc32c"
		partSizeFlag = "16MiB"
		thresholdFlag = ""

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "flag-bucket", cfg.Bucket)
		assert.Equal(t, "us-east-1", cfg.Region)
		assert.Equal(t, checksum.CRC32C, cfg.Algorithm)
		assert.Equal(t, int64(16<<20), cfg.PartSize)
		assert.Equal(t, int64(16<<20), cfg.Threshold)
	})

	t.Run("explicit threshold", func(t *testing.T) {
		bucketFlag = ""
		algorithmFlag = "SHA256"
		partSizeFlag = "8MiB"
		thresholdFlag = "9437185"

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "env-bucket", cfg.Bucket)
		assert.Equal(t, int64(8<<20), cfg.PartSize)
		assert.Equal(t, int64(9437185), cfg.Threshold)
	})

	t.Run("invalid algorithm", func(t *testing.T) {
		algorithmFlag = "md5"
		partSizeFlag = "8MiB"

		_, err := loadConfig()
		assert.ErrorContains(t, err, "unsupported checksum algorithm")
	})

	t.Run("invalid part size", func(t *testing.T) {
		algorithmFlag = "SHA256"
		partSizeFlag = "lots"

		_, err := loadConfig()
		assert.Error(t, err)
	})
}
