package s3

import (
	"context"

	minio "github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// objectDeleter is the subset of the S3 API used by prefix deletion.
// Implemented by *minio.Client.
type objectDeleter interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucket string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

var _ objectDeleter = (*minio.Client)(nil)

// deleteByPrefix enumerates all keys under the prefix and feeds them into
// batched delete requests; the client caps each Multi-Object Delete request at
// 1000 keys. The returned count is the number of objects actually removed,
// which stays accurate when enumeration or deletion fails partway through.
func deleteByPrefix(ctx context.Context, dc objectDeleter, bucket, prefix string) (int, error) {
	objectsCh := make(chan minio.ObjectInfo)

	var (
		listErr error
		sent    int
	)

	go func() {
		defer close(objectsCh)

		for o := range dc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if o.Err != nil {
				listErr = o.Err
				return
			}

			objectsCh <- o
			sent++
		}
	}()

	var deleteErrs []error

	for rerr := range dc.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		deleteErrs = append(deleteErrs, errors.Wrapf(rerr.Err, "error deleting %q", rerr.ObjectName))
	}

	// objects already sent and not rejected are gone even on the error paths.
	removed := sent - len(deleteErrs)

	if listErr != nil {
		return removed, errors.Wrap(listErr, "error listing objects to delete")
	}

	if len(deleteErrs) > 0 {
		return removed, deleteErrs[0]
	}

	return removed, nil
}
