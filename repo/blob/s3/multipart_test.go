package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	minio "github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeMultipartClient struct {
	partSizes   []int64
	partNumbers []int
	received    bytes.Buffer

	completedParts []minio.CompletePart
	aborted        bool
	completed      bool

	failPart     int // 1-based part number that fails, 0 for none
	failComplete bool
}

func (f *fakeMultipartClient) NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error) {
	return "upload-1", nil
}

func (f *fakeMultipartClient) PutObjectPart(ctx context.Context, bucket, object, uploadID string, partNumber int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error) {
	if f.failPart != 0 && partNumber == f.failPart {
		return minio.ObjectPart{}, errors.New("part upload failed")
	}

	n, err := io.Copy(&f.received, data)
	if err != nil {
		return minio.ObjectPart{}, err
	}

	if n != size {
		return minio.ObjectPart{}, errors.Errorf("part %v declared %v bytes but carried %v", partNumber, size, n)
	}

	f.partSizes = append(f.partSizes, size)
	f.partNumbers = append(f.partNumbers, partNumber)

	return minio.ObjectPart{
		PartNumber: partNumber,
		ETag:       fmt.Sprintf("etag-%v", partNumber),
	}, nil
}

func (f *fakeMultipartClient) CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.failComplete {
		return minio.UploadInfo{}, errors.New("commit failed")
	}

	f.completed = true
	f.completedParts = parts

	return minio.UploadInfo{}, nil
}

func (f *fakeMultipartClient) AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error {
	f.aborted = true
	return nil
}

func TestMultipartChunking(t *testing.T) {
	cases := []struct {
		totalLength int64
		partSize    int64
		wantParts   []int64
	}{
		{totalLength: 15000, partSize: 5000, wantParts: []int64{5000, 5000, 5000}},
		{totalLength: 12001, partSize: 5000, wantParts: []int64{5000, 5000, 2001}},
		{totalLength: 4999, partSize: 5000, wantParts: []int64{4999}},
		{totalLength: 5000, partSize: 5000, wantParts: []int64{5000}},
		{totalLength: 5001, partSize: 5000, wantParts: []int64{5000, 1}},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("S=%v,C=%v", tc.totalLength, tc.partSize), func(t *testing.T) {
			payload := bytes.Repeat([]byte{0x42}, int(tc.totalLength))
			fc := &fakeMultipartClient{}

			err := uploadInParts(context.Background(), fc, "bucket", "object", bytes.NewReader(payload), tc.totalLength, tc.partSize)
			require.NoError(t, err)

			require.Equal(t, tc.wantParts, fc.partSizes)
			require.True(t, fc.completed)
			require.False(t, fc.aborted)

			// sum of parts equals the payload, byte for byte
			require.Equal(t, payload, fc.received.Bytes())

			// parts numbered sequentially from 1 and committed in order with their tokens
			require.Len(t, fc.completedParts, len(tc.wantParts))

			for i, p := range fc.completedParts {
				require.Equal(t, i+1, p.PartNumber)
				require.Equal(t, fmt.Sprintf("etag-%v", i+1), p.ETag)
			}
		})
	}
}

func TestMultipartFailureAbortsSession(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 15000)

	fc := &fakeMultipartClient{failPart: 2}
	err := uploadInParts(context.Background(), fc, "bucket", "object", bytes.NewReader(payload), 15000, 5000)
	require.Error(t, err)
	require.True(t, fc.aborted)
	require.False(t, fc.completed)
}

func TestMultipartCommitFailureAbortsSession(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 15000)

	fc := &fakeMultipartClient{failComplete: true}
	err := uploadInParts(context.Background(), fc, "bucket", "object", bytes.NewReader(payload), 15000, 5000)
	require.Error(t, err)
	require.True(t, fc.aborted)
}

func TestMultipartShortPayloadFails(t *testing.T) {
	// payload shorter than the declared length must error out, not commit
	fc := &fakeMultipartClient{}
	err := uploadInParts(context.Background(), fc, "bucket", "object", bytes.NewReader(make([]byte, 9000)), 15000, 5000)
	require.Error(t, err)
	require.True(t, fc.aborted)
	require.False(t, fc.completed)
}
