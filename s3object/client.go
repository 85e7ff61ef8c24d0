// Package s3object reads checksum metadata of S3 objects and transfers
// objects with additional checksums enabled.
package s3object

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	defaultNumRetries = 3
	defaultRetryWait  = 5 * time.Second
	presignExpiry     = 15 * time.Minute
)

// AttributesAPI is the part of the S3 client used to read object metadata.
type AttributesAPI interface {
	GetObjectAttributes(ctx context.Context, params *s3.GetObjectAttributesInput, optFns ...func(*s3.Options)) (*s3.GetObjectAttributesOutput, error)
}

// PresignAPI ...
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Params ...
type Params struct {
	Bucket     string
	NumRetries uint
	RetryWait  time.Duration
}

// Service talks to a single bucket.
type Service struct {
	attributes   AttributesAPI
	uploadClient manager.UploadAPIClient
	presigner    PresignAPI
	bucket       string
	numRetries   uint
	retryWait    time.Duration
	logger       log.Logger
}

// NewService creates a Service backed by an S3 client built from cfg.
func NewService(cfg aws.Config, params Params, logger log.Logger) (*Service, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}

	client := s3.NewFromConfig(cfg)
	return newService(client, client, s3.NewPresignClient(client), params, logger), nil
}

func newService(attributes AttributesAPI, uploadClient manager.UploadAPIClient, presigner PresignAPI, params Params, logger log.Logger) *Service {
	if params.NumRetries == 0 {
		params.NumRetries = defaultNumRetries
	}
	if params.RetryWait == 0 {
		params.RetryWait = defaultRetryWait
	}

	return &Service{
		attributes:   attributes,
		uploadClient: uploadClient,
		presigner:    presigner,
		bucket:       params.Bucket,
		numRetries:   params.NumRetries,
		retryWait:    params.RetryWait,
		logger:       logger,
	}
}

// LoadAWSConfig loads the default AWS configuration for region. Static
// credentials are used when both the key ID and the secret are provided.
func LoadAWSConfig(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	} else {
		logger.Debugf("aws credentials not provided, using the default credential chain...")
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &cfg, nil
}
