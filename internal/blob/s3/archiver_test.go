package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// memBlobStore is an in-memory object store shared by the fake writer and
// reader so uploads are visible to the verification read-back.
type memBlobStore struct {
	objects map[string][]byte
	dropPut bool // when set, Put succeeds but the object never lands
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (s *memBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if !s.dropPut {
		s.objects[path] = buf
	}
	return nil
}

func (s *memBlobStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return s.Put(ctx, path, data, "")
}

func (s *memBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	buf, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (s *memBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, buf := range s.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(buf))})
		}
	}
	return infos, nil
}

func (s *memBlobStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := s.objects[path]
	return ok, nil
}

type memContractArchive struct {
	resolved []domain.Contract
}

func (s *memContractArchive) ListResolvedBefore(_ context.Context, before time.Time) ([]domain.Contract, error) {
	var out []domain.Contract
	for _, c := range s.resolved {
		if c.ResolutionTime != nil && c.ResolutionTime.Before(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

type memPayoutArchive struct {
	byContract map[string][]domain.Payout
}

func (s *memPayoutArchive) ListByContract(_ context.Context, contractID string) ([]domain.Payout, error) {
	return s.byContract[contractID], nil
}

func resolvedContract(id string, at time.Time) domain.Contract {
	return domain.Contract{
		ID:             id,
		Mechanism:      domain.MechanismCPMM,
		OutcomeType:    domain.OutcomeTypeBinary,
		IsResolved:     true,
		ResolutionTime: &at,
	}
}

func TestArchiveSettlement(t *testing.T) {
	store := newMemBlobStore()
	resolvedAt := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	contract := resolvedContract("c1", resolvedAt)
	payouts := []domain.Payout{{UserID: "alice", Payout: 120}}

	archiver := NewArchiver(store, store, &memContractArchive{}, &memPayoutArchive{})

	path, err := archiver.ArchiveSettlement(context.Background(), contract, payouts)
	require.NoError(t, err)
	assert.Equal(t, "settlements/2026-03/c1.json", path)

	var rec settlementRecord
	require.NoError(t, json.Unmarshal(store.objects[path], &rec))
	assert.Equal(t, "c1", rec.Contract.ID)
	require.Len(t, rec.Payouts, 1)
	assert.Equal(t, 120.0, rec.Payouts[0].Payout)
}

func TestArchiveSettlementFailsWhenObjectMissing(t *testing.T) {
	store := newMemBlobStore()
	store.dropPut = true
	resolvedAt := time.Now().UTC()

	archiver := NewArchiver(store, store, &memContractArchive{}, &memPayoutArchive{})

	_, err := archiver.ArchiveSettlement(context.Background(), resolvedContract("c1", resolvedAt), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing after upload")
}

func TestArchiveResolvedContracts(t *testing.T) {
	store := newMemBlobStore()
	cutoff := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	older := cutoff.Add(-48 * time.Hour)
	newer := cutoff.Add(48 * time.Hour)

	contracts := &memContractArchive{resolved: []domain.Contract{
		resolvedContract("c1", older),
		resolvedContract("c2", older),
		resolvedContract("c3", newer),
	}}
	payouts := &memPayoutArchive{byContract: map[string][]domain.Payout{
		"c1": {{UserID: "alice", Payout: 50}},
		"c2": {{UserID: "bob", Payout: 75}},
	}}

	archiver := NewArchiver(store, store, contracts, payouts)

	count, err := archiver.ArchiveResolvedContracts(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	buf, ok := store.objects["archive/settlements/2026-04.jsonl"]
	require.True(t, ok)

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var rec settlementRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.NotEqual(t, "c3", rec.Contract.ID)
	}
}

func TestArchiveResolvedContractsEmpty(t *testing.T) {
	store := newMemBlobStore()
	archiver := NewArchiver(store, store, &memContractArchive{}, &memPayoutArchive{})

	count, err := archiver.ArchiveResolvedContracts(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.objects)
}

func TestArchiveResolvedContractsFailsWhenObjectMissing(t *testing.T) {
	store := newMemBlobStore()
	store.dropPut = true
	older := time.Now().UTC().Add(-time.Hour)

	contracts := &memContractArchive{resolved: []domain.Contract{resolvedContract("c1", older)}}
	archiver := NewArchiver(store, store, contracts, &memPayoutArchive{})

	_, err := archiver.ArchiveResolvedContracts(context.Background(), time.Now().UTC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing after upload")
}
