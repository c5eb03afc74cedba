package application

import (
	"encoding/json"
	"strconv"
	"strings"

	"walletfeed/internal/domain"

	"github.com/shopspring/decimal"
)

// Item is a single decoded element of an explorer collection. Numbers are
// json.Number values so wei amounts keep full precision.
type Item = map[string]any

const defaultTokenSymbol = "TOKEN"

var (
	txHashFields        = []string{"hash", "tx_hash"}
	transferHashFields  = []string{"tx_hash", "transaction_hash", "hash"}
	timestampFields     = []string{"timestamp", "time", "block_timestamp"}
	statusFields        = []string{"status", "tx_status"}
	methodFields        = []string{"method", "call_method"}
	txTokenSymbolFields = []string{"token.symbol", "token_symbol"}
	tokenTypeFields     = []string{"token.type", "token_type", "type"}
	tokenAddressFields  = []string{"token.address_hash", "token.address", "contract_address", "token_address", "contract.address"}
	amountFields        = []string{"total.value", "value", "amount", "token_value"}
	tokenIDFields       = []string{"total.token_id", "token_id", "id", "tokenId"}
)

// ParseRawTx resolves an explorer transaction item. Items without a hash are
// rejected.
func ParseRawTx(item Item) (domain.RawTx, bool) {
	hash := firstText(item, txHashFields...)
	if hash == "" {
		return domain.RawTx{}, false
	}
	status := firstText(item, statusFields...)
	if status == "" {
		status = "ok"
	}
	return domain.RawTx{
		Hash:        hash,
		From:        address(lookup(item, "from")),
		To:          address(lookup(item, "to")),
		Timestamp:   timestamp(firstPresent(item, timestampFields...)),
		ValueWei:    nestedAmount(item, "value"),
		FeeWei:      nestedAmount(item, "fee", "tx_fee"),
		Status:      status,
		Method:      firstText(item, methodFields...),
		TokenSymbol: firstText(item, txTokenSymbolFields...),
	}, true
}

// ParseRawTransfer resolves an explorer token-transfer item. Items without a
// transaction hash are rejected.
func ParseRawTransfer(item Item) (domain.RawTransfer, bool) {
	hash := firstText(item, transferHashFields...)
	if hash == "" {
		return domain.RawTransfer{}, false
	}
	transfer := domain.RawTransfer{
		TxHash:       hash,
		From:         address(lookup(item, "from")),
		To:           address(lookup(item, "to")),
		TokenAddress: strings.ToLower(firstText(item, tokenAddressFields...)),
		TokenSymbol:  firstText(item, "token.symbol"),
		TokenType:    firstText(item, tokenTypeFields...),
		TokenID:      text(firstPresent(item, tokenIDFields...)),
		Timestamp:    timestamp(firstPresent(item, timestampFields...)),
	}
	if transfer.TokenSymbol == "" {
		transfer.TokenSymbol = defaultTokenSymbol
	}
	if raw := lookup(item, "token.decimals"); raw != nil {
		if value, ok := toDecimal(raw); ok && value.IsInteger() {
			decimals := int32(value.IntPart())
			transfer.TokenDecimals = &decimals
		}
	}
	amount := firstPresent(item, amountFields...)
	if amount == nil {
		zero := decimal.Zero
		transfer.AmountRaw = &zero
	} else if value, ok := toDecimal(amount); ok {
		transfer.AmountRaw = &value
	}
	return transfer, true
}

// nestedAmount reads a wei amount that is either a bare value or an object
// carrying a "value" field. The first key may be shadowed by fallbacks.
func nestedAmount(item Item, key string, fallbacks ...string) decimal.Decimal {
	if obj, ok := item[key].(map[string]any); ok && obj["value"] != nil {
		value, _ := toDecimal(obj["value"])
		return value
	}
	fields := append(append([]string{}, fallbacks...), key)
	raw := firstPresent(item, fields...)
	if raw == nil {
		return decimal.Zero
	}
	value, _ := toDecimal(raw)
	return value
}

// lookup walks a dotted path through nested objects.
func lookup(item Item, path string) any {
	var current any = item
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = obj[part]
	}
	return current
}

// firstPresent returns the first non-null value among the paths.
func firstPresent(item Item, paths ...string) any {
	for _, path := range paths {
		if value := lookup(item, path); value != nil {
			return value
		}
	}
	return nil
}

// firstText returns the first non-empty textual value among the paths.
func firstText(item Item, paths ...string) string {
	for _, path := range paths {
		if value := text(lookup(item, path)); value != "" {
			return value
		}
	}
	return ""
}

func text(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// address normalizes either a bare address string or an object with a hash.
func address(value any) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(v)
	case map[string]any:
		if hash, ok := v["hash"].(string); ok {
			return strings.ToLower(hash)
		}
	}
	return ""
}

func timestamp(value any) domain.Timestamp {
	switch v := value.(type) {
	case json.Number, float64:
		if seconds, ok := toDecimal(v); ok {
			return domain.Timestamp{Seconds: &seconds}
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if seconds, err := decimal.NewFromString(trimmed); err == nil {
			return domain.Timestamp{Seconds: &seconds}
		}
		return domain.Timestamp{Text: trimmed}
	}
	return domain.Timestamp{}
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		return parsed, err == nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return decimal.Zero, true
		}
		parsed, err := decimal.NewFromString(trimmed)
		return parsed, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		return decimal.Zero, false
	}
}
