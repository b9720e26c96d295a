package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	err     error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3FileStorage_SaveAndDelete(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}}
	files := newS3FileStorage(client, "media", "/stock/")
	ctx := context.Background()

	require.NoError(t, files.Save(ctx, "2026/sunset.jpg", strings.NewReader("image-bytes")))
	assert.Equal(t, "image-bytes", client.objects["media/stock/2026/sunset.jpg"])

	require.NoError(t, files.Delete(ctx, "2026/sunset.jpg"))
	assert.Empty(t, client.objects)
}

func TestS3FileStorage_Error(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}, err: errors.New("access denied")}
	files := newS3FileStorage(client, "media", "")

	err := files.Save(context.Background(), "sunset.jpg", strings.NewReader("x"))
	assert.ErrorContains(t, err, "access denied")

	err = files.Delete(context.Background(), "sunset.jpg")
	assert.ErrorContains(t, err, "access denied")
}
