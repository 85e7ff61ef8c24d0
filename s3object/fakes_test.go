package s3object

import (
	"context"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"
)

type mockAttributesAPI struct {
	mock.Mock
}

func (m *mockAttributesAPI) GetObjectAttributes(ctx context.Context, params *s3.GetObjectAttributesInput, optFns ...func(*s3.Options)) (*s3.GetObjectAttributesOutput, error) {
	// the input is reused across pages, so record the marker of this call
	var marker string
	if params.PartNumberMarker != nil {
		marker = *params.PartNumberMarker
	}

	args := m.Called(*params.Key, marker)
	output, _ := args.Get(0).(*s3.GetObjectAttributesOutput)
	return output, args.Error(1)
}

type fakePresigner struct {
	url string
	err error
}

func (p fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &v4.PresignedHTTPRequest{URL: p.url, Method: "GET"}, nil
}

type mockUploadAPI struct {
	mock.Mock
}

func (m *mockUploadAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(params)
	output, _ := args.Get(0).(*s3.PutObjectOutput)
	return output, args.Error(1)
}

func (m *mockUploadAPI) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(params)
	output, _ := args.Get(0).(*s3.UploadPartOutput)
	return output, args.Error(1)
}

func (m *mockUploadAPI) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(params)
	output, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return output, args.Error(1)
}

func (m *mockUploadAPI) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(params)
	output, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return output, args.Error(1)
}

func (m *mockUploadAPI) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(params)
	output, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return output, args.Error(1)
}
