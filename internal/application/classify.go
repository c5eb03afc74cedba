package application

import (
	"fmt"
	"strings"

	"walletfeed/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	nativeDecimals       = 18
	defaultTokenDecimals = 18
	legSeparator         = "; "
)

// Classifier turns merged records into feed items relative to one wallet.
type Classifier struct {
	rules RuleTable
}

func NewClassifier(rules RuleTable) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify keeps the input order and never drops a record.
func (c *Classifier) Classify(wallet string, merged []domain.MergedTx, nativeUSD float64) []domain.ActivityItem {
	wallet = strings.ToLower(wallet)
	items := make([]domain.ActivityItem, 0, len(merged))
	for _, record := range merged {
		items = append(items, c.classifyOne(wallet, record, nativeUSD))
	}
	return items
}

func (c *Classifier) classifyOne(wallet string, record domain.MergedTx, nativeUSD float64) domain.ActivityItem {
	tx := record.Tx
	direction := directionOf(wallet, tx.From, tx.To)
	otherParty := tx.To
	if direction == domain.DirectionIn {
		otherParty = tx.From
	}

	valueNative := scaleNative(tx.ValueWei)
	feeNative := scaleNative(tx.FeeWei)
	feeUSD := 0.0
	if nativeUSD > 0 {
		feeUSD = feeNative * nativeUSD
	}

	tokens := newTokenSet()
	var outParts, inParts []string
	hasNFT := false
	for _, transfer := range record.Transfers {
		leg := legOf(wallet, transfer)
		if leg.NFT {
			hasNFT = true
		}
		if transfer.TokenAddress != "" {
			tokens.put(transfer.TokenAddress, leg.Symbol)
		}
		part, ok := renderLeg(leg)
		if !ok {
			continue
		}
		switch leg.Direction {
		case domain.DirectionOut:
			outParts = append(outParts, part)
		case domain.DirectionIn:
			inParts = append(inParts, part)
		}
	}
	rendered := len(outParts) + len(inParts)
	details := strings.Join(append(outParts, inParts...), legSeparator)

	category, matched := c.rules.Classify(tx.Method)
	if tokens.empty() && matched && category == domain.CategoryApproval {
		if target := strings.ToLower(tx.To); target != "" {
			symbol := tx.TokenSymbol
			if symbol == "" {
				symbol = defaultTokenSymbol
			}
			tokens.put(target, symbol)
			if details == "" {
				details = "Approve " + symbol
			}
		}
	}
	if !matched {
		switch {
		case hasNFT:
			category = domain.CategoryNFT
		case rendered > 0 || tx.ValueWei.IsPositive():
			category = domain.CategoryTransfer
		default:
			category = domain.CategoryCall
		}
	}

	timestamp, _ := tx.Timestamp.Millis()
	status := tx.Status
	if status == "" {
		status = "ok"
	}
	return domain.ActivityItem{
		Hash:       tx.Hash,
		Timestamp:  timestamp,
		Direction:  direction,
		From:       tx.From,
		To:         tx.To,
		OtherParty: otherParty,
		ValueInk:   valueNative,
		GasFeeInk:  feeNative,
		GasFeeUsd:  feeUSD,
		Details:    details,
		HasNFT:     hasNFT,
		Status:     status,
		Category:   category,
		Tokens:     tokens.list(),
	}
}

func directionOf(wallet, from, to string) domain.Direction {
	from = strings.ToLower(from)
	to = strings.ToLower(to)
	switch {
	case from == wallet && to == wallet:
		return domain.DirectionSelf
	case to == wallet:
		return domain.DirectionIn
	default:
		return domain.DirectionOut
	}
}

func legOf(wallet string, transfer domain.RawTransfer) domain.TransferLeg {
	symbol := transfer.TokenSymbol
	if symbol == "" {
		symbol = defaultTokenSymbol
	}
	leg := domain.TransferLeg{
		Direction: directionOf(wallet, transfer.From, transfer.To),
		Symbol:    symbol,
		NFT:       isNFTType(transfer.TokenType),
		TokenID:   transfer.TokenID,
	}
	if transfer.AmountRaw != nil {
		decimals := int32(defaultTokenDecimals)
		if transfer.TokenDecimals != nil {
			decimals = *transfer.TokenDecimals
		}
		amount := *transfer.AmountRaw
		if decimals > 0 {
			amount = amount.Shift(-decimals)
		}
		leg.Amount = &amount
	}
	return leg
}

func isNFTType(tokenType string) bool {
	return strings.Contains(tokenType, "721") || strings.Contains(tokenType, "1155")
}

// renderLeg reports false for legs that produce no text: self legs and
// fungible legs with a zero or missing amount.
func renderLeg(leg domain.TransferLeg) (string, bool) {
	var verb string
	switch leg.Direction {
	case domain.DirectionOut:
		verb = "Sent"
	case domain.DirectionIn:
		verb = "Received"
	default:
		return "", false
	}
	if leg.NFT {
		return fmt.Sprintf("%s %s #%s", verb, leg.Symbol, leg.TokenID), true
	}
	if leg.Amount == nil || leg.Amount.IsZero() {
		return "", false
	}
	return fmt.Sprintf("%s %s %s", verb, formatAmount(*leg.Amount), leg.Symbol), true
}

// formatAmount rounds to 4 places at or above one and to 8 below, without
// trailing zeros.
func formatAmount(amount decimal.Decimal) string {
	places := int32(8)
	if amount.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		places = 4
	}
	return amount.Round(places).String()
}

func scaleNative(wei decimal.Decimal) float64 {
	return wei.Shift(-nativeDecimals).InexactFloat64()
}

// tokenSet keeps first-insertion order; a later put for the same address
// replaces the symbol in place.
type tokenSet struct {
	order []string
	refs  map[string]domain.TokenRef
}

func newTokenSet() *tokenSet {
	return &tokenSet{refs: make(map[string]domain.TokenRef)}
}

func (s *tokenSet) put(address, symbol string) {
	key := strings.ToLower(address)
	if _, ok := s.refs[key]; !ok {
		s.order = append(s.order, key)
	}
	s.refs[key] = domain.TokenRef{Symbol: symbol, Address: key}
}

func (s *tokenSet) empty() bool {
	return len(s.order) == 0
}

func (s *tokenSet) list() []domain.TokenRef {
	out := make([]domain.TokenRef, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.refs[key])
	}
	return out
}
