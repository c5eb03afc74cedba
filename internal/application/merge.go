package application

import (
	"sort"
	"strings"

	"walletfeed/internal/domain"

	"github.com/shopspring/decimal"
)

// Merge unions the two collections by lower-cased hash. Hashes seen only in
// transfers get a synthetic base transaction built from their first transfer.
// The result is ordered newest first; unresolvable timestamps sort last.
func Merge(txs []domain.RawTx, transfers []domain.RawTransfer) []domain.MergedTx {
	groups := make(map[string][]domain.RawTransfer)
	groupOrder := make([]string, 0)
	for _, transfer := range transfers {
		hash := strings.ToLower(transfer.TxHash)
		if hash == "" {
			continue
		}
		if _, ok := groups[hash]; !ok {
			groupOrder = append(groupOrder, hash)
		}
		groups[hash] = append(groups[hash], transfer)
	}

	index := make(map[string]int, len(txs)+len(groupOrder))
	merged := make([]domain.MergedTx, 0, len(txs)+len(groupOrder))
	for _, tx := range txs {
		hash := strings.ToLower(tx.Hash)
		if hash == "" {
			continue
		}
		if i, ok := index[hash]; ok {
			merged[i].Tx = tx
			continue
		}
		index[hash] = len(merged)
		merged = append(merged, domain.MergedTx{Tx: tx})
	}

	for _, hash := range groupOrder {
		group := groups[hash]
		if i, ok := index[hash]; ok {
			merged[i].Transfers = group
			continue
		}
		index[hash] = len(merged)
		merged = append(merged, domain.MergedTx{
			Tx:        syntheticBase(hash, group[0]),
			Transfers: group,
			Synthetic: true,
		})
	}

	millis := make([]int64, len(merged))
	for i := range merged {
		millis[i], _ = merged[i].Tx.Timestamp.Millis()
	}
	order := make([]int, len(merged))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return millis[order[a]] > millis[order[b]]
	})
	sorted := make([]domain.MergedTx, len(merged))
	for i, idx := range order {
		sorted[i] = merged[idx]
	}
	return sorted
}

func syntheticBase(hash string, first domain.RawTransfer) domain.RawTx {
	txHash := first.TxHash
	if txHash == "" {
		txHash = hash
	}
	return domain.RawTx{
		Hash:      txHash,
		From:      first.From,
		To:        first.To,
		Timestamp: first.Timestamp,
		ValueWei:  decimal.Zero,
		FeeWei:    decimal.Zero,
		Status:    "ok",
	}
}
