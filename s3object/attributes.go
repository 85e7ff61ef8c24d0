package s3object

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-utils/retry"
)

// maxPartsPerPage is the largest page S3 returns for object parts.
const maxPartsPerPage = 1000

// ErrObjectNotFound ...
var ErrObjectNotFound = errors.New("object not found in bucket")

// ObjectChecksum describes the checksum S3 stores for an object and the part
// layout it was uploaded with.
type ObjectChecksum struct {
	Key       string
	Size      int64
	Algorithm checksum.Algorithm
	// Value is empty if the object has no checksum of Algorithm. Multipart
	// values always carry the "-<part count>" suffix.
	Value     string
	Multipart bool
	PartSizes []int64
	// PartsComplete is false when S3 reported fewer part sizes than parts,
	// in which case the layout can't be used to recompute the checksum.
	PartsComplete bool
}

// ObjectChecksum fetches the checksum and part layout of key.
// If the object doesn't exist, the error is ErrObjectNotFound.
func (s *Service) ObjectChecksum(ctx context.Context, key string, algorithm checksum.Algorithm) (*ObjectChecksum, error) {
	var result *ObjectChecksum
	err := retry.Times(s.numRetries).Wait(s.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if ctx.Err() != nil {
			return ctx.Err(), true
		}
		if attempt > 0 {
			s.logger.Debugf("Retrying object attributes of %s (attempt %d)", key, attempt)
		}

		objectChecksum, err := s.fetchObjectChecksum(ctx, key, algorithm)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return err, true
			}
			return err, false
		}

		result = objectChecksum
		return nil, true
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) fetchObjectChecksum(ctx context.Context, key string, algorithm checksum.Algorithm) (*ObjectChecksum, error) {
	input := &s3.GetObjectAttributesInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		MaxParts: aws.Int32(maxPartsPerPage),
		ObjectAttributes: []types.ObjectAttributes{
			types.ObjectAttributesChecksum,
			types.ObjectAttributesObjectParts,
			types.ObjectAttributesObjectSize,
		},
	}

	result := &ObjectChecksum{Key: key, Algorithm: algorithm}
	var totalParts int
	for page := 1; ; page++ {
		output, err := s.attributes.GetObjectAttributes(ctx, input)
		if err != nil {
			if isNotFound(err) {
				return nil, ErrObjectNotFound
			}
			return nil, fmt.Errorf("get object attributes: %w", err)
		}

		if page == 1 {
			result.Size = aws.ToInt64(output.ObjectSize)
			result.Value = checksumOf(output.Checksum, algorithm)
		}

		parts := output.ObjectParts
		if parts == nil {
			break
		}

		totalParts = int(aws.ToInt32(parts.TotalPartsCount))
		for _, part := range parts.Parts {
			result.PartSizes = append(result.PartSizes, aws.ToInt64(part.Size))
		}

		if !aws.ToBool(parts.IsTruncated) || parts.NextPartNumberMarker == nil {
			break
		}
		s.logger.Debugf("Fetched page %d of the part list of %s", page, key)
		input.PartNumberMarker = parts.NextPartNumberMarker
	}

	if totalParts == 0 {
		result.PartSizes = []int64{result.Size}
		result.PartsComplete = true
		return result, nil
	}

	result.Multipart = true
	result.PartsComplete = len(result.PartSizes) == totalParts
	if result.Value != "" && !strings.Contains(result.Value, "-") {
		result.Value = fmt.Sprintf("%s-%d", result.Value, totalParts)
	}

	return result, nil
}

func checksumOf(c *types.Checksum, algorithm checksum.Algorithm) string {
	if c == nil {
		return ""
	}

	switch algorithm {
	case checksum.CRC32:
		return aws.ToString(c.ChecksumCRC32)
	case checksum.CRC32C:
		return aws.ToString(c.ChecksumCRC32C)
	case checksum.SHA1:
		return aws.ToString(c.ChecksumSHA1)
	case checksum.SHA256:
		return aws.ToString(c.ChecksumSHA256)
	default:
		return ""
	}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}
