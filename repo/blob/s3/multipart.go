package s3

import (
	"bytes"
	"context"
	"io"

	minio "github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// multipartClient is the subset of the low-level S3 API used by the multipart
// upload protocol. Implemented by *minio.Core.
type multipartClient interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(ctx context.Context, bucket, object, uploadID string, partNumber int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
}

var _ multipartClient = (*minio.Core)(nil)

// uploadInParts streams the payload as a multipart upload session. All parts
// are exactly partSize bytes except the last one; some S3-compatible servers
// reject unequal non-final parts. Parts are uploaded sequentially, each tagged
// with its part number and the server-issued ETag, and the session is
// committed with the ordered part list. Any failure aborts the session so no
// orphaned partial upload is left behind.
func uploadInParts(ctx context.Context, mc multipartClient, bucket, object string, r io.Reader, totalLength, partSize int64) error {
	uploadID, err := mc.NewMultipartUpload(ctx, bucket, object, minio.PutObjectOptions{
		ContentType: blobContentType,
	})
	if err != nil {
		return errors.Wrap(err, "NewMultipartUpload")
	}

	parts, err := putParts(ctx, mc, bucket, object, uploadID, r, totalLength, partSize)
	if err == nil {
		_, err = mc.CompleteMultipartUpload(ctx, bucket, object, uploadID, parts, minio.PutObjectOptions{})
		err = errors.Wrap(err, "CompleteMultipartUpload")
	}

	if err != nil {
		if abortErr := mc.AbortMultipartUpload(ctx, bucket, object, uploadID); abortErr != nil {
			return errors.Wrapf(err, "multipart upload failed and session abort also failed: %v", abortErr)
		}

		return err
	}

	return nil
}

func putParts(ctx context.Context, mc multipartClient, bucket, object, uploadID string, r io.Reader, totalLength, partSize int64) ([]minio.CompletePart, error) {
	var parts []minio.CompletePart

	buf := make([]byte, partSize)

	remaining := totalLength
	for partNumber := 1; remaining > 0; partNumber++ {
		n := partSize
		if remaining < n {
			n = remaining
		}

		if _, err := io.ReadFull(r, buf[0:n]); err != nil {
			return nil, errors.Wrapf(err, "error reading part %v", partNumber)
		}

		op, err := mc.PutObjectPart(ctx, bucket, object, uploadID, partNumber, bytes.NewReader(buf[0:n]), n, minio.PutObjectPartOptions{})
		if err != nil {
			return nil, errors.Wrapf(err, "error uploading part %v", partNumber)
		}

		parts = append(parts, minio.CompletePart{
			PartNumber: op.PartNumber,
			ETag:       op.ETag,
		})

		remaining -= n
	}

	return parts, nil
}
