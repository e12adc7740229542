// Package bootstrap fetches missing cache files from an S3-compatible
// bucket before FileStore.Open is attempted, so a fresh host can cold-start
// against a populated store without a separate sync step.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"

	"github.com/openscape/cachefs/pkg/config"
)

// Downloader is the subset of the S3 manager API Run needs, so tests can
// substitute a fake without standing up a real bucket.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// Run downloads every file named in m.Files that is missing under root,
// retrying transient failures with an exponential backoff. It never
// touches a file that already exists locally, and performs zero network
// calls when nothing is missing.
func Run(ctx context.Context, root string, m config.BootstrapManifest) error {
	cfg, err := awsConfigFor(ctx, m.Region)
	if err != nil {
		return fmt.Errorf("bootstrap: loading AWS config: %w", err)
	}

	downloader := manager.NewDownloader(s3.NewFromConfig(cfg))
	return RunWithDownloader(ctx, downloader, root, m)
}

// RunWithDownloader is Run with an injectable Downloader, used by tests.
func RunWithDownloader(ctx context.Context, downloader Downloader, root string, m config.BootstrapManifest) error {
	for _, name := range m.Files {
		localPath := filepath.Join(root, name)
		if _, err := os.Stat(localPath); err == nil {
			continue // already present, nothing to fetch
		}

		if err := fetchWithRetry(ctx, downloader, localPath, m.Bucket, m.Prefix+name); err != nil {
			return fmt.Errorf("bootstrap: fetching %q: %w", name, err)
		}
	}
	return nil
}

func fetchWithRetry(ctx context.Context, downloader Downloader, localPath, bucket, key string) error {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = backoffDeadline
	policy := backoff.WithContext(retry, ctx)

	return backoff.Retry(func() error {
		f, err := os.Create(localPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()

		_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	}, policy)
}

func awsConfigFor(ctx context.Context, region string) (aws.Config, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if accessKey == "" || secretKey == "" {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region), awsconfig.WithCredentialsProvider(creds))
}

// backoffDeadline bounds how long Run will retry a single file before
// giving up, used to configure the exponential backoff policy.
const backoffDeadline = 2 * time.Minute
