package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timestamp is an upstream time value that may arrive as epoch seconds or as a
// date-time string. The zero value is unresolved.
type Timestamp struct {
	Seconds *decimal.Decimal
	Text    string
}

// Millis resolves the timestamp to epoch milliseconds. Unresolvable values
// yield 0 and ok=false.
func (t Timestamp) Millis() (int64, bool) {
	if t.Seconds != nil {
		return t.Seconds.Shift(3).IntPart(), true
	}
	if t.Text == "" {
		return 0, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, t.Text); err == nil {
			return parsed.UnixMilli(), true
		}
	}
	return 0, false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// RawTx is one item of the explorer's transaction collection.
type RawTx struct {
	Hash        string
	From        string
	To          string
	Timestamp   Timestamp
	ValueWei    decimal.Decimal
	FeeWei      decimal.Decimal
	Status      string
	Method      string
	TokenSymbol string
}

// RawTransfer is one item of the explorer's token-transfer collection.
type RawTransfer struct {
	TxHash        string
	From          string
	To            string
	TokenAddress  string
	TokenSymbol   string
	TokenDecimals *int32
	TokenType     string
	AmountRaw     *decimal.Decimal
	TokenID       string
	Timestamp     Timestamp
}

// MergedTx groups every transfer of a hash under a single base transaction.
type MergedTx struct {
	Tx        RawTx
	Transfers []RawTransfer
	Synthetic bool
}
