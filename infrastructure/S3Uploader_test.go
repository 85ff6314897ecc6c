package infrastructure

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket      string
	key         string
	contentType string
	body        string
	err         error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(raw)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestNewS3Uploader(t *testing.T) {
	_, err := NewS3Uploader(nil, "bucket")
	assert.Error(t, err)
	_, err = NewS3Uploader(&fakeS3{}, "")
	assert.Error(t, err)
}

func TestS3Uploader_Download(t *testing.T) {
	client := &fakeS3{}
	uploader, err := NewS3Uploader(client, "exports")
	require.NoError(t, err)

	require.NoError(t, uploader.Download(context.Background(), []byte("Date,Notes\nx,y"), "uid/stamp_medications.csv", "text/csv;charset=utf-8;"))
	assert.Equal(t, "exports", client.bucket)
	assert.Equal(t, "uid/stamp_medications.csv", client.key)
	assert.Equal(t, "text/csv;charset=utf-8;", client.contentType)
	assert.Equal(t, "Date,Notes\nx,y", client.body)

	client.err = errors.New("denied")
	err = uploader.Download(context.Background(), []byte("x"), "f.csv", "text/csv")
	assert.ErrorContains(t, err, "denied")
}
