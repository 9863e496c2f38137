// Package uploader archives finished capture files to S3. Archival is
// best-effort and happens after the local write has succeeded, so a failed
// upload never costs captured data.
package uploader

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the slice of the S3 client the uploader uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader handles uploading completed capture files to S3
type Uploader struct {
	client      objectPutter
	bucket      string
	deleteAfter bool
	maxRetries  int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an uploader using the default AWS credential chain.
func New(ctx context.Context, bucket, region string, deleteAfter bool, maxRetries int) (*Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newWithClient(s3.NewFromConfig(cfg), bucket, deleteAfter, maxRetries), nil
}

// NewWithStaticCredentials creates an uploader using static credentials.
func NewWithStaticCredentials(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, deleteAfter bool, maxRetries int) (*Uploader, error) {
	credProvider := credentials.NewStaticCredentialsProvider(
		accessKeyID,
		secretAccessKey,
		"",
	)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newWithClient(s3.NewFromConfig(cfg), bucket, deleteAfter, maxRetries), nil
}

func newWithClient(client objectPutter, bucket string, deleteAfter bool, maxRetries int) *Uploader {
	return &Uploader{
		client:      client,
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
		now:         time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// Archive uploads one capture file, retrying with exponential backoff up to
// the configured budget. The object key is dated so repeated captures of the
// same scope do not clobber each other in the bucket.
func (u *Uploader) Archive(ctx context.Context, localPath, platform, scopeID string) error {
	filename := filepath.Base(localPath)
	key := u.archiveKey(filename, platform, scopeID)

	var lastErr error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		lastErr = u.uploadFile(ctx, localPath, key)
		if lastErr == nil {
			log.Printf("Archived %s to s3://%s/%s", filename, u.bucket, key)

			if u.deleteAfter {
				if err := os.Remove(localPath); err != nil {
					log.Printf("Error deleting local file %s: %v", localPath, err)
				} else {
					log.Printf("Deleted local file %s", localPath)
				}
			}
			return nil
		}

		if attempt < u.maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Upload attempt %d/%d failed for %s: %v. Retrying in %v",
				attempt+1, u.maxRetries, filename, lastErr, backoff)
			if err := u.sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("upload %s after %d attempts: %w", filename, u.maxRetries+1, lastErr)
}

// uploadFile uploads a specific file to S3
func (u *Uploader) uploadFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// archiveKey builds the dated object key.
// Input: twitter_42.json → 2025/12/30/twitter/42/twitter_42.json
func (u *Uploader) archiveKey(filename, platform, scopeID string) string {
	t := u.now().UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%s/%s/%s",
		t.Year(), t.Month(), t.Day(), platform, scopeID, filename)
}
