// Package s3 implements blob.Storage based on an S3-compatible bucket.
package s3

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/internal/retry"
	"github.com/gitvault/gitvault/repo/blob"
)

const s3storageType = "s3"

const blobContentType = "application/x-gitvault"

type s3Storage struct {
	Options

	cli *minio.Client

	// low-level API used for the explicit multipart upload protocol.
	mp multipartClient
}

func (s *s3Storage) getObjectNameString(b blob.ID) string {
	return s.Prefix + string(b)
}

func (s *s3Storage) GetBlob(ctx context.Context, b blob.ID) ([]byte, error) {
	attempt := func() (interface{}, error) {
		o, err := s.cli.GetObject(ctx, s.BucketName, s.getObjectNameString(b), minio.GetObjectOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "GetObject")
		}

		defer o.Close() //nolint:errcheck

		v, err := io.ReadAll(o)
		if err != nil {
			return nil, errors.Wrap(err, "ReadAll")
		}

		return v, nil
	}

	v, err := exponentialBackoff(ctx, fmt.Sprintf("GetBlob(%q)", b), attempt)
	if err != nil {
		return nil, translateError(err)
	}

	return v.([]byte), nil
}

func (s *s3Storage) GetMetadata(ctx context.Context, b blob.ID) (blob.Metadata, error) {
	v, err := exponentialBackoff(ctx, fmt.Sprintf("GetMetadata(%q)", b), func() (interface{}, error) {
		oi, err := s.cli.StatObject(ctx, s.BucketName, s.getObjectNameString(b), minio.StatObjectOptions{})
		if err != nil {
			return blob.Metadata{}, errors.Wrap(err, "StatObject")
		}

		return blob.Metadata{
			BlobID:    b,
			Length:    oi.Size,
			Timestamp: oi.LastModified,
		}, nil
	})
	if err != nil {
		return blob.Metadata{}, translateError(err)
	}

	return v.(blob.Metadata), nil
}

func (s *s3Storage) PutBlob(ctx context.Context, b blob.ID, data blob.Bytes) error {
	return translateError(retry.WithExponentialBackoffNoValue(ctx, fmt.Sprintf("PutBlob(%q)", b), func() error {
		r, err := data.Reader()
		if err != nil {
			return errors.Wrap(err, "Reader")
		}
		defer r.Close() //nolint:errcheck

		if data.Length() >= s.MultipartThreshold {
			return s.putBlobMultipart(ctx, b, r, data.Length())
		}

		_, err = s.cli.PutObject(ctx, s.BucketName, s.getObjectNameString(b), r, data.Length(), minio.PutObjectOptions{
			ContentType:      blobContentType,
			DisableMultipart: true,
		})

		return errors.Wrap(err, "PutObject")
	}, isRetriableError))
}

func (s *s3Storage) putBlobMultipart(ctx context.Context, b blob.ID, r io.Reader, totalLength int64) error {
	return uploadInParts(ctx, s.mp, s.BucketName, s.getObjectNameString(b), r, totalLength, s.PartSize)
}

func (s *s3Storage) DeleteBlob(ctx context.Context, b blob.ID) error {
	attempt := func() (interface{}, error) {
		return nil, s.cli.RemoveObject(ctx, s.BucketName, s.getObjectNameString(b), minio.RemoveObjectOptions{})
	}

	_, err := exponentialBackoff(ctx, fmt.Sprintf("DeleteBlob(%q)", b), attempt)
	if errors.Is(translateError(err), blob.ErrBlobNotFound) {
		return nil
	}

	return translateError(err)
}

func (s *s3Storage) DeletePrefix(ctx context.Context, prefix blob.ID) (int, error) {
	return deleteByPrefix(ctx, s.cli, s.BucketName, s.getObjectNameString(prefix))
}

func (s *s3Storage) ListBlobs(ctx context.Context, prefix blob.ID, callback func(blob.Metadata) error) error {
	for o := range s.cli.ListObjects(ctx, s.BucketName, minio.ListObjectsOptions{
		Prefix:    s.getObjectNameString(prefix),
		Recursive: true,
	}) {
		if o.Err != nil {
			return errors.Wrap(o.Err, "ListObjects")
		}

		bm := blob.Metadata{
			BlobID:    blob.ID(o.Key[len(s.Prefix):]),
			Length:    o.Size,
			Timestamp: o.LastModified,
		}

		if err := callback(bm); err != nil {
			return err
		}
	}

	return nil
}

// ListPrefixes performs a delimited listing and returns the first-level common
// prefixes under the given prefix, with the trailing separator removed.
func (s *s3Storage) ListPrefixes(ctx context.Context, prefix blob.ID) ([]string, error) {
	var result []string

	for o := range s.cli.ListObjects(ctx, s.BucketName, minio.ListObjectsOptions{
		Prefix:    s.getObjectNameString(prefix),
		Recursive: false,
	}) {
		if o.Err != nil {
			return nil, errors.Wrap(o.Err, "ListObjects")
		}

		if !strings.HasSuffix(o.Key, "/") {
			continue
		}

		p := strings.TrimSuffix(o.Key[len(s.getObjectNameString(prefix)):], "/")
		if p != "" {
			result = append(result, p)
		}
	}

	sort.Strings(result)

	return result, nil
}

func (s *s3Storage) ConnectionInfo() blob.ConnectionInfo {
	return blob.ConnectionInfo{
		Type:   s3storageType,
		Config: &s.Options,
	}
}

func (s *s3Storage) Close(ctx context.Context) error {
	return nil
}

func (s *s3Storage) String() string {
	return fmt.Sprintf("s3://%v/%v", s.BucketName, s.Prefix)
}

func (s *s3Storage) DisplayName() string {
	return fmt.Sprintf("S3: %v %v", s.Endpoint, s.BucketName)
}

func exponentialBackoff(ctx context.Context, desc string, att retry.AttemptFunc) (interface{}, error) {
	return retry.WithExponentialBackoff(ctx, desc, att, isRetriableError)
}

func isRetriableError(err error) bool {
	var me minio.ErrorResponse

	if errors.As(err, &me) {
		// retry on server errors, not on client errors
		return me.StatusCode >= http.StatusInternalServerError
	}

	if strings.Contains(strings.ToLower(err.Error()), "http") {
		// retry http transport errors, unfortunately no other way to detect them
		return true
	}

	return false
}

func translateError(err error) error {
	var me minio.ErrorResponse

	if errors.As(err, &me) {
		if me.StatusCode == http.StatusOK {
			return nil
		}

		if me.StatusCode == http.StatusNotFound {
			return blob.ErrBlobNotFound
		}
	}

	return err
}

func getCustomTransport(insecureSkipVerify bool) *http.Transport {
	//nolint:gosec
	return &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify}}
}

// New creates new S3-backed storage with the specified options. The
// 'BucketName' field is required, all other parameters are optional.
func New(ctx context.Context, opt *Options) (blob.Storage, error) {
	if opt.BucketName == "" {
		return nil, errors.New("bucket name must be specified")
	}

	opt.applyDefaults()

	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opt.AccessKeyID, opt.SecretAccessKey, opt.SessionToken),
		Secure: !opt.DoNotUseTLS,
		Region: opt.Region,
	}

	if opt.DoNotVerifyTLS {
		minioOpts.Transport = getCustomTransport(true)
	}

	cli, err := minio.New(opt.Endpoint, minioOpts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create client")
	}

	core, err := minio.NewCore(opt.Endpoint, minioOpts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create core client")
	}

	ok, err := cli.BucketExists(ctx, opt.BucketName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to determine if bucket %q exists", opt.BucketName)
	}

	if !ok {
		return nil, errors.Errorf("bucket %q does not exist", opt.BucketName)
	}

	return &s3Storage{
		Options: *opt,
		cli:     cli,
		mp:      core,
	}, nil
}
