package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/streakvault/streakvault/internal/domain"
)

// Reader fetches and lists objects from the client's bucket. The admin API
// uses it to serve archived settlements back out.
type Reader struct {
	c *Client
}

// NewReader returns a domain.BlobReader over the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

var _ domain.BlobReader = (*Reader)(nil)

// Get opens the object at path. The caller owns the returned body. A missing
// object maps to domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return out.Body, nil
}

// List walks every object under prefix, following pagination to the end.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	pager := s3.NewListObjectsV2Paginator(r.c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.c.bucket),
		Prefix: aws.String(prefix),
	})

	var out []domain.BlobInfo
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// Exists reports whether an object is present at path.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(path),
	})
	switch {
	case err == nil:
		return true, nil
	case isMissing(err):
		return false, nil
	default:
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
}

// isMissing matches the ways an S3-compatible store says 404: the typed
// NoSuchKey from GetObject, the typed NotFound from HeadObject, or a bare
// HTTP 404 from providers that skip the error code.
func isMissing(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}

	var httpErr interface{ HTTPStatusCode() int }
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}
