package source

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
)

// Stdin is the identifier for standard input.
const Stdin = "-"

const (
	s3Scheme  = "s3://"
	gcsScheme = "gs://"
)

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin

// Resolve maps an identifier to a local file. Standard input and remote
// objects are copied into a fresh temporary directory; cleanup removes it and
// must always be called. For local paths cleanup does nothing.
func Resolve(ctx context.Context, id string, remote config.RemoteConfig) (string, func(), error) {
	switch {
	case id == Stdin:
		return spool(remote.TempDir, "stdin", func(w *os.File) error {
			_, err := io.Copy(w, stdin)
			return err
		})
	case strings.HasPrefix(id, s3Scheme):
		bucket, key, err := splitObject(id, s3Scheme)
		if err != nil {
			return "", nil, err
		}
		return spool(remote.TempDir, path.Base(key), withRetry(ctx, NewRetryPolicy(remote.MaxAttempts), func(w *os.File) error {
			return downloadS3(ctx, remote, bucket, key, w)
		}))
	case strings.HasPrefix(id, gcsScheme):
		bucket, object, err := splitObject(id, gcsScheme)
		if err != nil {
			return "", nil, err
		}
		return spool(remote.TempDir, path.Base(object), withRetry(ctx, NewRetryPolicy(remote.MaxAttempts), func(w *os.File) error {
			return downloadGCS(ctx, remote, bucket, object, w)
		}))
	}

	info, err := os.Stat(id)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "source not found").
			WithDetail(errors.DetailSource, id)
	}
	if info.IsDir() {
		return "", nil, errors.New(errors.ErrorTypeSourceOpen, "source is a directory").
			WithDetail(errors.DetailSource, id)
	}
	return id, func() {}, nil
}

func splitObject(id, scheme string) (string, string, error) {
	rest := strings.TrimPrefix(id, scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", errors.New(errors.ErrorTypeSourceOpen, "object identifier must name a bucket and an object").
			WithDetail(errors.DetailSource, id)
	}
	return bucket, key, nil
}

// spool runs fill against a file called name inside a new temporary
// directory. The base name is kept so suffix based detection still works.
func spool(dir, name string, fill func(w *os.File) error) (string, func(), error) {
	tmp, err := os.MkdirTemp(dir, "crossbow-*")
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to create spool directory")
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }

	target := filepath.Join(tmp, filepath.Base(name))
	f, err := os.Create(target)
	if err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to create spool file")
	}

	if err := fill(f); err != nil {
		f.Close()
		cleanup()
		return "", nil, errors.Classify(err, errors.ErrorTypeSourceOpen, "failed to fetch source").
			WithDetail(errors.DetailSource, name)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to write spool file")
	}

	logger.Debug("source spooled", zap.String("path", target))
	return target, cleanup, nil
}

func downloadS3(ctx context.Context, remote config.RemoteConfig, bucket, key string, w io.WriterAt) error {
	var opts []func(*awsconfig.LoadOptions) error
	if remote.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(remote.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to load AWS config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if remote.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(remote.S3Endpoint)
		}
		o.UsePathStyle = remote.S3PathStyle
	})
	downloader := manager.NewDownloader(client)

	n, err := downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to download S3 object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	logger.Debug("downloaded S3 object", zap.String("bucket", bucket), zap.String("key", key), zap.Int64("bytes", n))
	return nil
}

func downloadGCS(ctx context.Context, remote config.RemoteConfig, bucket, object string, w io.Writer) error {
	var opts []option.ClientOption
	if remote.GCSAnonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to create GCS client")
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open GCS object").
			WithDetail("bucket", bucket).
			WithDetail("object", object)
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to download GCS object").
			WithDetail("bucket", bucket).
			WithDetail("object", object)
	}
	logger.Debug("downloaded GCS object", zap.String("bucket", bucket), zap.String("object", object), zap.Int64("bytes", n))
	return nil
}
