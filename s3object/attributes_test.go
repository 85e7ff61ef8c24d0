package s3object

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(api AttributesAPI) *Service {
	return newService(api, nil, nil, Params{Bucket: "test-bucket", NumRetries: 1, RetryWait: time.Millisecond}, log.NewLogger())
}

func TestObjectChecksum_SinglePart(t *testing.T) {
	// Given
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "small.bin", "").Return(&s3.GetObjectAttributesOutput{
		ObjectSize: aws.Int64(5),
		Checksum: &types.Checksum{
			ChecksumSHA256: aws.String("WZRHGrsBESr8wYFZ9sx0tPURuZgG2lmzyvWpwXPKz8U="),
		},
	}, nil)
	service := newTestService(api)

	// When
	got, err := service.ObjectChecksum(context.Background(), "small.bin", checksum.SHA256)

	// Then
	require.NoError(t, err)
	assert.Equal(t, &ObjectChecksum{
		Key:           "small.bin",
		Size:          5,
		Algorithm:     checksum.SHA256,
		Value:         "WZRHGrsBESr8wYFZ9sx0tPURuZgG2lmzyvWpwXPKz8U=",
		Multipart:     false,
		PartSizes:     []int64{5},
		PartsComplete: true,
	}, got)
	api.AssertExpectations(t)
}

func TestObjectChecksum_MultipartPaging(t *testing.T) {
	// Given
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "large.bin", "").Return(&s3.GetObjectAttributesOutput{
		ObjectSize: aws.Int64(9),
		Checksum: &types.Checksum{
			ChecksumCRC32C: aws.String("abcd"),
		},
		ObjectParts: &types.GetObjectAttributesParts{
			TotalPartsCount:      aws.Int32(3),
			IsTruncated:          aws.Bool(true),
			NextPartNumberMarker: aws.String("2"),
			Parts: []types.ObjectPart{
				{PartNumber: aws.Int32(1), Size: aws.Int64(4)},
				{PartNumber: aws.Int32(2), Size: aws.Int64(4)},
			},
		},
	}, nil).Once()
	api.On("GetObjectAttributes", "large.bin", "2").Return(&s3.GetObjectAttributesOutput{
		ObjectSize: aws.Int64(9),
		Checksum: &types.Checksum{
			ChecksumCRC32C: aws.String("abcd"),
		},
		ObjectParts: &types.GetObjectAttributesParts{
			TotalPartsCount: aws.Int32(3),
			IsTruncated:     aws.Bool(false),
			Parts: []types.ObjectPart{
				{PartNumber: aws.Int32(3), Size: aws.Int64(1)},
			},
		},
	}, nil).Once()
	service := newTestService(api)

	// When
	got, err := service.ObjectChecksum(context.Background(), "large.bin", checksum.CRC32C)

	// Then
	require.NoError(t, err)
	assert.True(t, got.Multipart)
	assert.True(t, got.PartsComplete)
	assert.Equal(t, []int64{4, 4, 1}, got.PartSizes)
	assert.Equal(t, "abcd-3", got.Value)
	api.AssertExpectations(t)
}

func TestObjectChecksum_MissingParts(t *testing.T) {
	// Given
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "large.bin", "").Return(&s3.GetObjectAttributesOutput{
		ObjectSize: aws.Int64(9),
		ObjectParts: &types.GetObjectAttributesParts{
			TotalPartsCount: aws.Int32(2),
		},
	}, nil)
	service := newTestService(api)

	// When
	got, err := service.ObjectChecksum(context.Background(), "large.bin", checksum.SHA256)

	// Then
	require.NoError(t, err)
	assert.True(t, got.Multipart)
	assert.False(t, got.PartsComplete)
	assert.Empty(t, got.Value)
}

func TestObjectChecksum_OtherAlgorithm(t *testing.T) {
	// Given
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "small.bin", "").Return(&s3.GetObjectAttributesOutput{
		ObjectSize: aws.Int64(5),
		Checksum: &types.Checksum{
			ChecksumCRC32: aws.String("y/U6HA=="),
		},
	}, nil)
	service := newTestService(api)

	// When
	got, err := service.ObjectChecksum(context.Background(), "small.bin", checksum.SHA256)

	// Then
	require.NoError(t, err)
	assert.Empty(t, got.Value)
}

func TestObjectChecksum_NotFound(t *testing.T) {
	// Given
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "missing.bin", "").Return(nil, &types.NoSuchKey{}).Once()
	service := newTestService(api)

	// When
	_, err := service.ObjectChecksum(context.Background(), "missing.bin", checksum.SHA256)

	// Then
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	api.AssertNumberOfCalls(t, "GetObjectAttributes", 1)
}

func TestObjectChecksum_RetriesOtherErrors(t *testing.T) {
	// Given
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "small.bin", "").Return(nil, errors.New("connection reset")).Once()
	api.On("GetObjectAttributes", "small.bin", "").Return(&s3.GetObjectAttributesOutput{
		ObjectSize: aws.Int64(5),
		Checksum: &types.Checksum{
			ChecksumSHA256: aws.String("WZRHGrsBESr8wYFZ9sx0tPURuZgG2lmzyvWpwXPKz8U="),
		},
	}, nil).Once()
	service := newTestService(api)

	// When
	got, err := service.ObjectChecksum(context.Background(), "small.bin", checksum.SHA256)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "WZRHGrsBESr8wYFZ9sx0tPURuZgG2lmzyvWpwXPKz8U=", got.Value)
	api.AssertNumberOfCalls(t, "GetObjectAttributes", 2)
}

func TestObjectChecksum_StopsRetryingWhenCancelled(t *testing.T) {
	// Given
	ctx, cancel := context.WithCancel(context.Background())
	api := new(mockAttributesAPI)
	api.On("GetObjectAttributes", "small.bin", "").Return(nil, errors.New("connection reset")).Run(func(mock.Arguments) {
		cancel()
	})
	service := newService(api, nil, nil, Params{Bucket: "test-bucket", NumRetries: 3, RetryWait: time.Millisecond}, log.NewLogger())

	// When
	_, err := service.ObjectChecksum(ctx, "small.bin", checksum.SHA256)

	// Then
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	api.AssertNumberOfCalls(t, "GetObjectAttributes", 1)
}
