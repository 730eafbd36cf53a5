package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SettlementArchiver writes cold-storage snapshots of settled markets and
// their bets so the hot records can be reclaimed by CloseMarket.
type SettlementArchiver interface {
	ArchiveMarket(ctx context.Context, market Market, bets []Bet) error
}
