package application

import (
	"testing"

	"walletfeed/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func secondsTS(v int64) domain.Timestamp {
	d := decimal.NewFromInt(v)
	return domain.Timestamp{Seconds: &d}
}

func TestMerge_TransferOnlyHashesGetSyntheticBase(t *testing.T) {
	txs := []domain.RawTx{
		{Hash: "0x1", From: "0xb", To: "0xa", Timestamp: secondsTS(100), ValueWei: decimal.NewFromInt(5), Status: "ok"},
	}
	transfers := []domain.RawTransfer{
		{TxHash: "0X1", From: "0xb", To: "0xa"},
		{TxHash: "0x2", From: "0xc", To: "0xa", Timestamp: secondsTS(200)},
		{TxHash: "0x2", From: "0xa", To: "0xd"},
		{TxHash: "0x3", From: "0xe", To: "0xa", Timestamp: domain.Timestamp{Text: "1970-01-01T00:00:50Z"}},
	}

	merged := Merge(txs, transfers)
	require.Len(t, merged, 3)

	byHash := make(map[string]domain.MergedTx)
	for _, record := range merged {
		_, dup := byHash[record.Tx.Hash]
		require.False(t, dup, "duplicate hash %s", record.Tx.Hash)
		byHash[record.Tx.Hash] = record
	}

	base := byHash["0x1"]
	require.False(t, base.Synthetic)
	require.Len(t, base.Transfers, 1)
	require.Equal(t, "5", base.Tx.ValueWei.String())

	synthetic := byHash["0x2"]
	require.True(t, synthetic.Synthetic)
	require.Len(t, synthetic.Transfers, 2)
	require.Equal(t, "0xc", synthetic.Tx.From)
	require.Equal(t, "0xa", synthetic.Tx.To)
	require.Equal(t, "ok", synthetic.Tx.Status)
	require.True(t, synthetic.Tx.ValueWei.IsZero())
	require.True(t, synthetic.Tx.FeeWei.IsZero())
}

func TestMerge_SortsNewestFirstWithUnresolvedLast(t *testing.T) {
	txs := []domain.RawTx{
		{Hash: "0xold", Timestamp: secondsTS(10)},
		{Hash: "0xunknown"},
		{Hash: "0xnew", Timestamp: domain.Timestamp{Text: "2024-01-01T00:00:00Z"}},
		{Hash: "0xmid", Timestamp: secondsTS(1_600_000_000)},
	}

	merged := Merge(txs, nil)
	hashes := make([]string, 0, len(merged))
	for _, record := range merged {
		hashes = append(hashes, record.Tx.Hash)
	}
	require.Equal(t, []string{"0xnew", "0xmid", "0xold", "0xunknown"}, hashes)
}

func TestMerge_DuplicateTransactionKeepsOneRecord(t *testing.T) {
	txs := []domain.RawTx{
		{Hash: "0xAA", Status: "error"},
		{Hash: "0xaa", Status: "ok"},
	}
	merged := Merge(txs, nil)
	require.Len(t, merged, 1)
	require.Equal(t, "ok", merged[0].Tx.Status)
}

func TestMerge_Empty(t *testing.T) {
	require.Empty(t, Merge(nil, nil))
}
