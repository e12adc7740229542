package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/openscape/cachefs/pkg/config"
)

type fakeDownloader struct {
	calls   int
	failN   int // fail this many times before succeeding
	content string
}

func (f *fakeDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error) {
	f.calls++
	if f.calls <= f.failN {
		return 0, errors.New("transient network error")
	}
	n, err := w.WriteAt([]byte(f.content), 0)
	return int64(n), err
}

func TestRunSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main_file_cache.dat2"), []byte("already here"), 0o644))

	dl := &fakeDownloader{}
	m := config.BootstrapManifest{Bucket: "b", Prefix: "p/", Files: []string{"main_file_cache.dat2"}}

	err := RunWithDownloader(context.Background(), dl, dir, m)
	require.NoError(t, err)
	require.Zero(t, dl.calls)
}

func TestRunFetchesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{content: "fetched bytes"}
	m := config.BootstrapManifest{Bucket: "b", Prefix: "p/", Files: []string{"main_file_cache.idx255"}}

	err := RunWithDownloader(context.Background(), dl, dir, m)
	require.NoError(t, err)
	require.Equal(t, 1, dl.calls)

	got, err := os.ReadFile(filepath.Join(dir, "main_file_cache.idx255"))
	require.NoError(t, err)
	require.Equal(t, "fetched bytes", string(got))
}

func TestRunRetriesTransientFailures(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{content: "ok after retry", failN: 2}
	m := config.BootstrapManifest{Bucket: "b", Prefix: "p/", Files: []string{"main_file_cache.idx0"}}

	err := RunWithDownloader(context.Background(), dl, dir, m)
	require.NoError(t, err)
	require.Equal(t, 3, dl.calls)
}

// TestRunAgainstMockedS3Endpoint drives RunWithDownloader with a genuine
// aws-sdk-go-v2 s3.Client and manager.Downloader, built here rather than by
// Run, against an httpmock'd HTTP transport, instead of the Downloader fake
// the other tests use.
func TestRunAgainstMockedS3Endpoint(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	body := "mocked cache file body"
	httpmock.RegisterResponder("GET", `=~main_file_cache\.dat2`,
		httpmock.NewStringResponder(200, body))

	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		HTTPClient:  client,
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	downloader := manager.NewDownloader(s3Client)

	dir := t.TempDir()
	m := config.BootstrapManifest{Bucket: "fake-bucket", Prefix: "p/", Files: []string{"main_file_cache.dat2"}}

	err := RunWithDownloader(context.Background(), downloader, dir, m)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "main_file_cache.dat2"))
	require.NoError(t, err)
	require.Equal(t, body, string(got))
}

func TestRunNoFilesMeansNoCalls(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{}
	m := config.BootstrapManifest{Bucket: "b", Prefix: "p/"}

	err := RunWithDownloader(context.Background(), dl, dir, m)
	require.NoError(t, err)
	require.Zero(t, dl.calls)
}
