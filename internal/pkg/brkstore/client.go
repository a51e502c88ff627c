// Package brkstore wraps the S3 API as the object store for task payloads
// and results.
package brkstore

import (
	"io"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattetti/filebuffer"
	log "github.com/sirupsen/logrus"
)

// Client provides put/get/delete of named byte blobs in a bucket.
type Client struct {
	Client s3iface.S3API

	cacheOnce   sync.Once
	objectCache *lru.Cache
}

// New initializes a new Client on the given session.
func New(p client.ConfigProvider) *Client {
	return &Client{
		Client: s3.New(p),
	}
}

func (c *Client) cache() *lru.Cache {
	c.cacheOnce.Do(func() {
		c.objectCache, _ = lru.New(10000)
	})
	return c.objectCache
}

// UploadBytes uploads an in-memory blob under the given key.
func (c *Client) UploadBytes(bucket, key string, data []byte) error {
	log.Debugf("Uploading %s to s3://%s/%s", humanize.Bytes(uint64(len(data))), bucket, key)

	_, err := c.Client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   filebuffer.New(data),
	})
	return err
}

// Upload uploads the file at localPath under the given key.
func (c *Client) Upload(localPath, bucket, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	log.Debugf("Uploading %s to s3://%s/%s", humanize.Bytes(uint64(info.Size())), bucket, key)

	_, err = c.Client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

// Download fetches the object under the given key into localPath.
func (c *Client) Download(bucket, key, localPath string) error {
	out, err := c.Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	written, err := io.Copy(f, out.Body)
	if err != nil {
		return err
	}
	log.Debugf("Downloaded %s from s3://%s/%s", humanize.Bytes(uint64(written)), bucket, key)
	return nil
}

// Stat returns the size of the object under the given key. Sizes are
// cached per bucket/key; objects are written once and keys never reused.
func (c *Client) Stat(bucket, key string) (int64, error) {
	cacheKey := bucket + "/" + key
	if size, exists := c.cache().Get(cacheKey); exists {
		return size.(int64), nil
	}

	out, err := c.Client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, err
	}

	size := aws.Int64Value(out.ContentLength)
	c.cache().Add(cacheKey, size)
	return size, nil
}

// Delete removes the object under the given key.
func (c *Client) Delete(bucket, key string) error {
	c.cache().Remove(bucket + "/" + key)
	_, err := c.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}
