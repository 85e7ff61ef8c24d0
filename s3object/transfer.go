package s3object

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/melbahja/got"
)

// Upload uploads the file at path to key with an additional checksum of
// algorithm. Files larger than partSize are uploaded in partSize parts,
// anything else goes up with a single PUT.
func (s *Service) Upload(ctx context.Context, key, path string, algorithm checksum.Algorithm, partSize int64) error {
	if partSize < manager.MinUploadPartSize {
		return fmt.Errorf("part size must be at least %d bytes, got %d", manager.MinUploadPartSize, partSize)
	}

	return retry.Times(s.numRetries).Wait(s.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if ctx.Err() != nil {
			return ctx.Err(), true
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open file: %w", err), true
		}
		defer file.Close() //nolint:errcheck

		uploader := manager.NewUploader(s.uploadClient, func(u *manager.Uploader) {
			u.PartSize = partSize
		})

		s.logger.Debugf("Uploading %s to s3://%s/%s (attempt %d)", path, s.bucket, key, attempt+1)
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Body:              file,
			Bucket:            aws.String(s.bucket),
			Key:               aws.String(key),
			ChecksumAlgorithm: algorithm,
		})
		if err != nil {
			return fmt.Errorf("upload object: %w", err), false
		}

		return nil, true
	})
}

// Download downloads key to dest through a presigned URL.
func (s *Service) Download(ctx context.Context, key, dest string) error {
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return fmt.Errorf("presign download url: %w", err)
	}

	retryableHTTPClient := retryhttp.NewClient(s.logger)
	retryableHTTPClient.CheckRetry = createCustomRetryFunction(s.logger)

	s.logger.Debugf("Downloading s3://%s/%s to %s", s.bucket, key, dest)
	if err := downloadFile(ctx, retryableHTTPClient.StandardClient(), request.URL, dest); err != nil {
		return fmt.Errorf("download object: %w", err)
	}

	return nil
}

func createCustomRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, downloadErr error) (bool, error) {
		retry, err := retryablehttp.DefaultRetryPolicy(ctx, resp, downloadErr)
		logger.Debugf("CheckRetry: retry=%v ; err=%+v ; downloadErr=%+v", retry, err, downloadErr)
		return retry, err
	}
}

func downloadFile(ctx context.Context, client *http.Client, url string, dest string) error {
	downloader := got.New()
	downloader.Client = client

	return downloader.Do(got.NewDownload(ctx, url, dest))
}
