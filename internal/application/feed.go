package application

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"walletfeed/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const FeedPageSize = 25

// FeedQuery selects one page of a wallet's feed. Token is either a token
// contract address (0x-prefixed) or a symbol; empty means no filter.
type FeedQuery struct {
	Wallet string
	Page   int
	Token  string
}

// Feed is the fully classified activity of a wallet before filtering.
type Feed struct {
	Items  []domain.ActivityItem
	Tokens []domain.TokenRef
}

type FeedService struct {
	source     SnapshotSource
	classifier *Classifier
}

func NewFeedService(source SnapshotSource, classifier *Classifier) *FeedService {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &FeedService{source: source, classifier: classifier}
}

// Build fetches, merges and classifies the whole history of wallet.
func (s *FeedService) Build(ctx context.Context, wallet string) Feed {
	ctx, span := otel.Tracer("walletfeed/feed").Start(ctx, "feed.build")
	defer span.End()

	snapshot := s.source.Fetch(ctx, wallet)
	merged := Merge(snapshot.Transactions, snapshot.Transfers)
	items := s.classifier.Classify(wallet, merged, snapshot.NativeUSD)
	span.SetAttributes(attribute.Int("feed.items", len(items)))
	return Feed{Items: items, Tokens: BuildTokenIndex(items)}
}

// Query returns one filtered page. A missing wallet yields the empty page.
func (s *FeedService) Query(ctx context.Context, q FeedQuery) domain.FeedPage {
	wallet := strings.TrimSpace(q.Wallet)
	if wallet == "" {
		return domain.EmptyFeedPage("", 1)
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	feed := s.Build(ctx, wallet)
	filtered := FilterByToken(feed.Items, q.Token)
	txs, hasMore := Paginate(filtered, page)
	slog.Debug("feed query",
		"wallet", wallet,
		"page", page,
		"token", q.Token,
		"items", len(feed.Items),
		"filtered", len(filtered),
	)
	return domain.FeedPage{
		Address: wallet,
		Page:    page,
		HasMore: hasMore,
		Txs:     txs,
		Tokens:  feed.Tokens,
	}
}

// BuildTokenIndex dedupes tokens by address in first-seen order. The first
// symbol seen for an address wins.
func BuildTokenIndex(items []domain.ActivityItem) []domain.TokenRef {
	seen := make(map[string]struct{})
	index := make([]domain.TokenRef, 0)
	for _, item := range items {
		for _, token := range item.Tokens {
			key := strings.ToLower(token.Address)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			index = append(index, domain.TokenRef{Symbol: token.Symbol, Address: key})
		}
	}
	return index
}

// FilterByToken keeps items touching the token. Matching is exact and
// case-insensitive on address for 0x-prefixed filters, on symbol otherwise.
func FilterByToken(items []domain.ActivityItem, filter string) []domain.ActivityItem {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return items
	}
	byAddress := strings.HasPrefix(filter, "0x")
	out := make([]domain.ActivityItem, 0)
	for _, item := range items {
		for _, token := range item.Tokens {
			candidate := token.Symbol
			if byAddress {
				candidate = token.Address
			}
			if strings.ToLower(candidate) == filter {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func Paginate(items []domain.ActivityItem, page int) ([]domain.ActivityItem, bool) {
	if page < 1 {
		page = 1
	}
	// past the last page; also keeps huge page numbers from overflowing
	if page > len(items)/FeedPageSize+1 {
		return []domain.ActivityItem{}, false
	}
	start := (page - 1) * FeedPageSize
	end := min(page*FeedPageSize, len(items))
	out := make([]domain.ActivityItem, end-start)
	copy(out, items[start:end])
	return out, page*FeedPageSize < len(items)
}

// NormalizePage parses a page parameter; anything non-numeric or below 1 is 1.
func NormalizePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
