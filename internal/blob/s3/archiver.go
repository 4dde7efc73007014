package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// ContractArchiveStore provides read access to resolved contracts for
// archival. The Postgres ContractStore satisfies it implicitly.
type ContractArchiveStore interface {
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Contract, error)
}

// PayoutArchiveStore provides read access to settlement line items for
// archival.
type PayoutArchiveStore interface {
	ListByContract(ctx context.Context, contractID string) ([]domain.Payout, error)
}

// ArchiveImpl implements domain.Archiver by serializing settlement records to
// JSONL and uploading them to S3. Every upload is read back with a HeadObject
// before it counts as archived.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	contracts ContractArchiveStore
	payouts   PayoutArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, contracts ContractArchiveStore, payouts PayoutArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		reader:    reader,
		contracts: contracts,
		payouts:   payouts,
	}
}

// multipartThreshold is the batch size above which the monthly JSONL upload
// switches to multipart.
const multipartThreshold int64 = 8 * 1024 * 1024

// settlementRecord is the archived shape of one resolved contract.
type settlementRecord struct {
	Contract domain.Contract `json:"contract"`
	Payouts  []domain.Payout `json:"payouts"`
}

// ArchiveSettlement uploads one contract's settlement to S3 at
// settlements/YYYY-MM/{contractID}.json and returns the object path.
func (a *ArchiveImpl) ArchiveSettlement(ctx context.Context, contract domain.Contract, payouts []domain.Payout) (string, error) {
	resolvedAt := time.Now().UTC()
	if contract.ResolutionTime != nil {
		resolvedAt = contract.ResolutionTime.UTC()
	}

	buf, err := json.Marshal(settlementRecord{Contract: contract, Payouts: payouts})
	if err != nil {
		return "", fmt.Errorf("s3blob: archive settlement marshal: %w", err)
	}

	path := fmt.Sprintf("settlements/%s/%s.json", resolvedAt.Format("2006-01"), contract.ID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement upload: %w", err)
	}
	if err := a.verify(ctx, path); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement: %w", err)
	}
	return path, nil
}

// ArchiveResolvedContracts queries all contracts resolved before the cutoff,
// serializes each with its payouts to JSONL, and uploads the batch to S3 at
// archive/settlements/YYYY-MM.jsonl. The count of archived contracts is
// returned.
func (a *ArchiveImpl) ArchiveResolvedContracts(ctx context.Context, before time.Time) (int64, error) {
	contracts, err := a.contracts.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive resolved query: %w", err)
	}
	if len(contracts) == 0 {
		return 0, nil
	}

	records := make([]settlementRecord, 0, len(contracts))
	for _, contract := range contracts {
		payouts, err := a.payouts.ListByContract(ctx, contract.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive resolved payouts %s: %w", contract.ID, err)
		}
		records = append(records, settlementRecord{Contract: contract, Payouts: payouts})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive resolved marshal: %w", err)
	}

	path := fmt.Sprintf("archive/settlements/%s.jsonl", before.Format("2006-01"))
	if int64(len(buf)) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive resolved upload: %w", err)
	}
	if err := a.verify(ctx, path); err != nil {
		return 0, fmt.Errorf("s3blob: archive resolved: %w", err)
	}

	return int64(len(records)), nil
}

// verify confirms the uploaded object is actually retrievable. An upload
// that cannot be read back does not count as archived.
func (a *ArchiveImpl) verify(ctx context.Context, path string) error {
	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("verify %s: object missing after upload", path)
	}
	return nil
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
var _ domain.Archiver = (*ArchiveImpl)(nil)
