package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/streakvault/streakvault/internal/domain"
)

// S3 rejects multipart parts under 5 MiB.
const multipartFloor int64 = 5 << 20

// Writer uploads objects into the client's bucket.
type Writer struct {
	c *Client
}

// NewWriter returns a domain.BlobWriter over the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{c: c}
}

var _ domain.BlobWriter = (*Writer)(nil)

// Put uploads data in a single request. Settlement archives are small, so
// this is the path the archiver uses.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.c.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

// PutMultipart streams data through the upload manager in partSize chunks,
// clamped up to the S3 minimum. Used for bulk exports too large for Put.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	if partSize < multipartFloor {
		partSize = multipartFloor
	}

	up := manager.NewUploader(w.c.api, func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	_, err := up.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.c.bucket),
		Key:    aws.String(path),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart put %s: %w", path, err)
	}
	return nil
}
