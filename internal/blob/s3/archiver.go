package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streakvault/streakvault/internal/domain"
)

// SettlementArchive implements domain.SettlementArchiver by serializing a
// settled market and its bets to JSONL and uploading the snapshot to S3.
//
// Deletion of the hot records is intentionally NOT performed here; that is
// CloseMarket's job, executed after the archive has been written.
type SettlementArchive struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	now    func() time.Time
}

// NewSettlementArchive creates a SettlementArchive.
func NewSettlementArchive(writer domain.BlobWriter, audit domain.AuditStore) *SettlementArchive {
	return &SettlementArchive{
		writer: writer,
		audit:  audit,
		now:    time.Now,
	}
}

// settlementRecord is one JSONL line. The first line carries the market
// header; subsequent lines carry one bet each.
type settlementRecord struct {
	Kind   string         `json:"kind"`
	Market *domain.Market `json:"market,omitempty"`
	Bet    *domain.Bet    `json:"bet,omitempty"`
}

// ArchiveMarket uploads a settlement snapshot to
// archive/settlements/YYYY-MM/{marketID}.jsonl and records the archival in
// the audit log.
func (a *SettlementArchive) ArchiveMarket(ctx context.Context, market domain.Market, bets []domain.Bet) error {
	records := make([]settlementRecord, 0, len(bets)+1)
	records = append(records, settlementRecord{Kind: "market", Market: &market})
	for i := range bets {
		records = append(records, settlementRecord{Kind: "bet", Bet: &bets[i]})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("s3blob: archive market %s marshal: %w", market.ID, err)
	}

	path := settlementPath(market.ID, a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive market %s upload: %w", market.ID, err)
	}

	if err := a.audit.Log(ctx, "archive.settlement", map[string]any{
		"path":      path,
		"market_id": market.ID,
		"status":    string(market.Status),
		"bets":      len(bets),
	}); err != nil {
		return fmt.Errorf("s3blob: archive market %s audit log: %w", market.ID, err)
	}

	return nil
}

// settlementPath builds the S3 key for a settlement snapshot, partitioned by
// the year-month of the archival time.
//
//	archive/settlements/2026-08/{marketID}.jsonl
func settlementPath(marketID string, at time.Time) string {
	return fmt.Sprintf("archive/settlements/%s/%s.jsonl", at.Format("2006-01"), marketID)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.SettlementArchiver = (*SettlementArchive)(nil)
