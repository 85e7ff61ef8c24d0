package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitrise-io/go-s3verify/archive"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/spf13/cobra"
)

var (
	archiveFlag          bool
	compressionLevelFlag int
	extractFlag          string
)

func upload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key, paths := args[0], args[1:]

	verifier, err := newVerifier(ctx)
	if err != nil {
		return err
	}

	path := paths[0]
	if archiveFlag {
		var cleanup func()
		if path, cleanup, err = createArchive(paths); err != nil {
			return err
		}
		defer cleanup()
	} else {
		if len(paths) > 1 {
			return fmt.Errorf("multiple paths can only be uploaded with --archive")
		}
		if info, err := os.Stat(path); err != nil {
			return err
		} else if info.IsDir() {
			return fmt.Errorf("%s is a directory, use --archive to upload it", path)
		}
	}

	result, err := verifier.Upload(ctx, path, key)
	if err != nil {
		return err
	}

	printResult(result)
	return resultError(result)
}

// createArchive packs paths into an archive in a new temp dir. cleanup removes
// that dir.
func createArchive(paths []string) (archivePath string, cleanup func(), err error) {
	if archive.AreAllPathsEmpty(paths) {
		return "", nil, fmt.Errorf("the provided paths are all empty")
	}

	tempDir, err := pathutil.NewPathProvider().CreateTempDir("s3verify")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warnf("Failed to remove temp dir %s: %s", tempDir, err)
		}
	}
	archivePath = filepath.Join(tempDir, fmt.Sprintf("archive-%s.tzst", time.Now().UTC().Format("20060102-150405")))

	logger.Infof("Creating archive...")
	startTime := time.Now()
	if err := archive.NewArchiver(logger).Compress(archivePath, paths, compressionLevelFlag); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("compression failed: %w", err)
	}
	logger.Donef("Archive created in %s", time.Since(startTime).Round(time.Second))

	return archivePath, cleanup, nil
}

func download(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	verifier, err := newVerifier(ctx)
	if err != nil {
		return err
	}

	result, err := verifier.Download(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	printResult(result)

	if extractFlag == "" {
		return resultError(result)
	}
	if !result.Verified() {
		logger.Warnf("Archive is not verified, skipping extraction")
		return resultError(result)
	}

	logger.Infof("Extracting archive to %s...", extractFlag)
	if err := archive.NewArchiver(logger).Decompress(result.Path, extractFlag); err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	logger.Donef("Archive extracted")

	return nil
}

var uploadCmd = &cobra.Command{
	Use:   "upload <key> <path>...",
	Short: "Uploads a file with an additional checksum and verifies what S3 stored.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  upload,
}

var downloadCmd = &cobra.Command{
	Use:   "download <key> <dest>",
	Short: "Downloads an object and verifies the downloaded file.",
	Args:  cobra.ExactArgs(2),
	RunE:  download,
}

func init() {
	uploadCmd.Flags().BoolVar(&archiveFlag, "archive", false, "pack the paths into a zstd compressed tar archive before uploading")
	uploadCmd.Flags().IntVar(&compressionLevelFlag, "compression-level", archive.DefaultLevel, "zstd compression level (1-19)")
	downloadCmd.Flags().StringVar(&extractFlag, "extract", "", "extract the downloaded archive into this directory once verified")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
}
