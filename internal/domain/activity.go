package domain

import "github.com/shopspring/decimal"

type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionSelf Direction = "self"
)

type Category string

const (
	CategoryApproval Category = "approval"
	CategorySwap     Category = "swap"
	CategoryGM       Category = "gm"
	CategoryNFT      Category = "nft"
	CategoryTransfer Category = "transfer"
	CategoryCall     Category = "call"
)

// TransferLeg is one token movement of a transaction as seen from the queried
// wallet. Amount is nil when the raw amount could not be scaled.
type TransferLeg struct {
	Direction Direction
	Symbol    string
	Amount    *decimal.Decimal
	NFT       bool
	TokenID   string
}

// TokenRef identifies a token touched by a transaction. Address is lower-cased.
type TokenRef struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

// ActivityItem is a single normalized entry of a wallet's activity feed.
type ActivityItem struct {
	Hash       string     `json:"hash"`
	Timestamp  int64      `json:"timestamp"`
	Direction  Direction  `json:"direction"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	OtherParty string     `json:"otherParty"`
	ValueInk   float64    `json:"valueInk"`
	GasFeeInk  float64    `json:"gasFeeInk"`
	GasFeeUsd  float64    `json:"gasFeeUsd"`
	Details    string     `json:"details"`
	HasNFT     bool       `json:"hasNft"`
	Status     string     `json:"status"`
	Category   Category   `json:"category"`
	Tokens     []TokenRef `json:"tokens"`
}

// FeedPage is one page of a wallet's filtered activity feed.
type FeedPage struct {
	Address string         `json:"address"`
	Page    int            `json:"page"`
	HasMore bool           `json:"hasMore"`
	Txs     []ActivityItem `json:"txs"`
	Tokens  []TokenRef     `json:"tokens"`
}

// EmptyFeedPage is the response shape used for a missing wallet and for failures.
func EmptyFeedPage(address string, page int) FeedPage {
	return FeedPage{
		Address: address,
		Page:    page,
		Txs:     []ActivityItem{},
		Tokens:  []TokenRef{},
	}
}
