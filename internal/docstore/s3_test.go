package docstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

func testStore() *S3Store {
	return NewS3Store(Config{
		RootUser:     "admin",
		RootPassword: "secret",
		Bucket:       "invoices",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000/",
	})
}

func TestInvoicePDF_FetchesByRemoteID(t *testing.T) {
	origGet := getObject
	defer func() { getObject = origGet }()

	var gotBucket, gotKey string
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		gotBucket = *in.Bucket
		gotKey = *in.Key
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("%PDF-1.4"))}, nil
	}

	data, err := testStore().InvoicePDF(context.Background(), "e4c7-uuid")
	require.NoError(t, err)
	require.Equal(t, "invoices", gotBucket)
	require.Equal(t, "invoices/e4c7-uuid.pdf", gotKey)
	require.Equal(t, []byte("%PDF-1.4"), data)
}

func TestInvoicePDF_GetObjectError(t *testing.T) {
	origGet := getObject
	defer func() { getObject = origGet }()

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, errors.New("no such key")
	}

	_, err := testStore().InvoicePDF(context.Background(), "missing")
	require.ErrorContains(t, err, "no such key")
	require.ErrorContains(t, err, "invoices/missing.pdf")
}

func TestInvoicePDF_ConfigLoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	defer func() { loadDefaultAWSConfig = origLoad }()

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad credentials")
	}

	_, err := testStore().InvoicePDF(context.Background(), "x")
	require.ErrorContains(t, err, "bad credentials")
}
