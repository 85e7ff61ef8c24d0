// Package verify compares local files with S3 objects using S3 additional
// checksums, including composite checksums of multipart uploads.
package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-s3verify/s3object"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
)

// ErrNoFilesMatched ...
var ErrNoFilesMatched = errors.New("no files matched the pattern")

// ObjectStore ...
type ObjectStore interface {
	ObjectChecksum(ctx context.Context, key string, algorithm checksum.Algorithm) (*s3object.ObjectChecksum, error)
	Upload(ctx context.Context, key, path string, algorithm checksum.Algorithm, partSize int64) error
	Download(ctx context.Context, key, dest string) error
}

// Options ...
type Options struct {
	Algorithm checksum.Algorithm
	// PartSize is the part size of uploads and of locally computed checksums.
	PartSize int64
	// Threshold is the size from which locally computed checksums use the
	// multipart format. Defaults to PartSize.
	Threshold   int64
	Concurrency int
}

// Verifier ...
type Verifier struct {
	store  ObjectStore
	logger log.Logger
	opts   Options
}

// NewVerifier ...
func NewVerifier(store ObjectStore, logger log.Logger, opts Options) *Verifier {
	if opts.Threshold == 0 {
		opts.Threshold = opts.PartSize
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Verifier{
		store:  store,
		logger: logger,
		opts:   opts,
	}
}

// Sum computes the checksum the file at path gets when uploaded with the
// configured part size and threshold.
func (v *Verifier) Sum(path string) (string, error) {
	v.logger.Debugf("Computing %s checksum of %s", v.opts.Algorithm, path)
	return checksum.FromFixedChunking(path, v.opts.Algorithm, v.opts.PartSize, v.opts.Threshold)
}

// Check compares the file at path with the object stored under key.
func (v *Verifier) Check(ctx context.Context, path, key string) (Result, error) {
	remote, err := v.store.ObjectChecksum(ctx, key, v.opts.Algorithm)
	if err != nil {
		return Result{Path: path, Key: key}, fmt.Errorf("get checksum of %s: %w", key, err)
	}

	return v.compare(path, key, remote)
}

// Upload uploads the file at path to key and verifies the checksum S3 computed.
// The upload is skipped if the object already has the same checksum.
func (v *Verifier) Upload(ctx context.Context, path, key string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Path: path, Key: key}, err
	}

	threshold := uploadThreshold(v.opts.PartSize)
	local, err := checksum.FromFixedChunking(path, v.opts.Algorithm, v.opts.PartSize, threshold)
	if err != nil {
		return Result{Path: path, Key: key}, fmt.Errorf("compute local checksum: %w", err)
	}
	v.logger.Debugf("Local checksum: %s", local)

	existing, err := v.store.ObjectChecksum(ctx, key, v.opts.Algorithm)
	switch {
	case err == nil && existing.Value == local:
		v.logger.Donef("Object %s already has the same checksum, skipping upload", key)
		return Result{Path: path, Key: key, Local: local, Remote: existing.Value}.decide(), nil
	case err != nil && !errors.Is(err, s3object.ErrObjectNotFound):
		v.logger.Warnf("Failed to check existing object %s: %s", key, err)
	}

	v.logger.Infof("Uploading %s (%s)...", path, units.HumanSizeWithPrecision(float64(info.Size()), 3))
	uploadStartTime := time.Now()
	if err := v.store.Upload(ctx, key, path, v.opts.Algorithm, v.opts.PartSize); err != nil {
		return Result{Path: path, Key: key, Local: local}, fmt.Errorf("upload: %w", err)
	}
	v.logger.Donef("Uploaded in %s", time.Since(uploadStartTime).Round(time.Second))

	remote, err := v.store.ObjectChecksum(ctx, key, v.opts.Algorithm)
	if err != nil {
		return Result{Path: path, Key: key, Local: local}, fmt.Errorf("get checksum of %s: %w", key, err)
	}

	plan := checksum.PlanFixedChunks(info.Size(), v.opts.PartSize, threshold)
	verified, err := checksum.FromDeclaredParts(path, v.opts.Algorithm, plan, threshold)
	if err != nil {
		return Result{Path: path, Key: key, Local: local}, fmt.Errorf("compute local checksum: %w", err)
	}

	result := Result{Path: path, Key: key, Local: verified, Remote: remote.Value}.decide()
	v.logResult(result)
	return result, nil
}

// Download downloads key to dest and verifies the downloaded file.
func (v *Verifier) Download(ctx context.Context, key, dest string) (Result, error) {
	remote, err := v.store.ObjectChecksum(ctx, key, v.opts.Algorithm)
	if err != nil {
		return Result{Path: dest, Key: key}, fmt.Errorf("get checksum of %s: %w", key, err)
	}

	v.logger.Infof("Downloading %s (%s)...", key, units.HumanSizeWithPrecision(float64(remote.Size), 3))
	downloadStartTime := time.Now()
	if err := v.store.Download(ctx, key, dest); err != nil {
		return Result{Path: dest, Key: key, Remote: remote.Value}, fmt.Errorf("download: %w", err)
	}
	v.logger.Donef("Downloaded in %s", time.Since(downloadStartTime).Round(time.Second))

	return v.compare(dest, key, remote)
}

// CheckAll checks every file matching pattern under baseDir against the
// object keyPrefix + the file's path relative to baseDir. Results are
// sorted by path.
func (v *Verifier) CheckAll(ctx context.Context, baseDir, pattern, keyPrefix string) ([]Result, error) {
	files, err := v.matchFiles(baseDir, pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFilesMatched
	}
	v.logger.Infof("Checking %d files with concurrency %d", len(files), v.opts.Concurrency)

	results := make([]Result, len(files))
	errs := make([]error, len(files))
	semaphore := make(chan struct{}, v.opts.Concurrency)
	var wg sync.WaitGroup
	for i, file := range files {
		semaphore <- struct{}{}
		wg.Add(1)
		go func(index int, relPath string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			key := path.Join(keyPrefix, filepath.ToSlash(relPath))
			results[index], errs[index] = v.Check(ctx, filepath.Join(baseDir, relPath), key)
		}(i, file)
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, err.Error())
			continue
		}
		v.logResult(results[i])
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%d of %d checks failed: %s", len(failed), len(files), strings.Join(failed, "; "))
	}

	return results, nil
}

func (v *Verifier) compare(path, key string, remote *s3object.ObjectChecksum) (Result, error) {
	result := Result{Path: path, Key: key, Remote: remote.Value}

	if remote.Value == "" {
		result.Status = StatusUnknown
		result.Reason = fmt.Sprintf("object has no %s checksum", v.opts.Algorithm)
		return result, nil
	}
	if !remote.PartsComplete {
		result.Status = StatusUnknown
		result.Reason = "part layout of the object is not available"
		return result, nil
	}

	local, err := checksum.FromDeclaredPartsWithMode(path, v.opts.Algorithm, remote.Multipart, remote.PartSizes)
	if err != nil {
		return result, fmt.Errorf("compute local checksum: %w", err)
	}
	result.Local = local

	return result.decide(), nil
}

func (v *Verifier) matchFiles(baseDir, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(baseDir), pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(filepath.Join(baseDir, match))
		if err != nil {
			v.logger.Warnf("Skipping %s: %s", match, err)
			continue
		}
		if info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)

	return files, nil
}

func (v *Verifier) logResult(result Result) {
	switch result.Status {
	case StatusMatch:
		v.logger.Donef("%s: %s (%s)", result.Path, result.Status, result.Local)
	case StatusMismatch:
		v.logger.Errorf("%s: %s, local %s, remote %s", result.Path, result.Status, result.Local, result.Remote)
	default:
		v.logger.Warnf("%s: could not verify, %s", result.Path, result.Reason)
	}
}

// uploadThreshold returns the smallest file size the S3 upload manager sends
// in multiple parts: a body of exactly one part goes up with a single PUT.
func uploadThreshold(partSize int64) int64 {
	return partSize + 1
}
