package brkstore

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
)

type mockS3Client struct {
	s3iface.S3API
	objects   map[string][]byte
	headCalls int
}

func (m *mockS3Client) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	data, err := ioutil.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.StringValue(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	obj, exists := m.objects[aws.StringValue(input.Key)]
	if !exists {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewReader(obj))}, nil
}

func (m *mockS3Client) HeadObject(input *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	m.headCalls++
	obj, exists := m.objects[aws.StringValue(input.Key)]
	if !exists {
		return nil, awserr.New("NotFound", "no such key", nil)
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(obj)))}, nil
}

func (m *mockS3Client) DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.StringValue(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newMockClient() (*Client, *mockS3Client) {
	mock := &mockS3Client{objects: map[string][]byte{}}
	return &Client{Client: mock}, mock
}

func TestUploadBytes(t *testing.T) {
	client, mock := newMockClient()

	err := client.UploadBytes("bucket", "key", []byte("payload"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("payload"), mock.objects["key"])
}

func TestUploadFromFile(t *testing.T) {
	client, mock := newMockClient()

	localPath := filepath.Join(t.TempDir(), "blob")
	err := ioutil.WriteFile(localPath, []byte("file contents"), 0644)
	assert.Nil(t, err)

	err = client.Upload(localPath, "bucket", "key")
	assert.Nil(t, err)
	assert.Equal(t, []byte("file contents"), mock.objects["key"])
}

func TestDownload(t *testing.T) {
	client, mock := newMockClient()
	mock.objects["key"] = []byte("remote contents")

	localPath := filepath.Join(t.TempDir(), "blob")
	err := client.Download("bucket", "key", localPath)
	assert.Nil(t, err)

	data, err := ioutil.ReadFile(localPath)
	assert.Nil(t, err)
	assert.Equal(t, []byte("remote contents"), data)
}

func TestDownloadMissingObject(t *testing.T) {
	client, _ := newMockClient()

	localPath := filepath.Join(t.TempDir(), "blob")
	err := client.Download("bucket", "key", localPath)
	assert.NotNil(t, err)

	_, statErr := os.Stat(localPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStatCachesSizes(t *testing.T) {
	client, mock := newMockClient()
	mock.objects["key"] = []byte("12345")

	size, err := client.Stat("bucket", "key")
	assert.Nil(t, err)
	assert.Equal(t, int64(5), size)

	size, err = client.Stat("bucket", "key")
	assert.Nil(t, err)
	assert.Equal(t, int64(5), size)

	assert.Equal(t, 1, mock.headCalls)
}

func TestStatMissingObject(t *testing.T) {
	client, mock := newMockClient()

	_, err := client.Stat("bucket", "key")
	assert.NotNil(t, err)
	assert.Equal(t, 1, mock.headCalls)
}

func TestDelete(t *testing.T) {
	client, mock := newMockClient()
	mock.objects["key"] = []byte("payload")

	err := client.Delete("bucket", "key")
	assert.Nil(t, err)
	_, exists := mock.objects["key"]
	assert.False(t, exists)
}
