package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"walletfeed/internal/domain"

	"github.com/stretchr/testify/require"
)

type memoryWalletStore struct {
	mu      sync.Mutex
	wallets map[string]domain.TrackedWallet
	listErr error
	pingErr error
}

func newMemoryWalletStore() *memoryWalletStore {
	return &memoryWalletStore{wallets: make(map[string]domain.TrackedWallet)}
}

func (m *memoryWalletStore) UpsertTrackedWallet(ctx context.Context, address string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallet := m.wallets[address]
	wallet.Address = address
	wallet.LastSeenAt = seenAt
	m.wallets[address] = wallet
	return nil
}

func (m *memoryWalletStore) ListTrackedWallets(ctx context.Context) ([]domain.TrackedWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.TrackedWallet, 0, len(m.wallets))
	for _, wallet := range m.wallets {
		out = append(out, wallet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *memoryWalletStore) SetExportedThrough(ctx context.Context, address string, timestampMs int64, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallet := m.wallets[address]
	wallet.ExportedThrough = timestampMs
	wallet.ExportedHashes = hashes
	m.wallets[address] = wallet
	return nil
}

func (m *memoryWalletStore) Ping(ctx context.Context) error { return m.pingErr }

type stubFeedBuilder struct {
	feeds map[string][]domain.ActivityItem
}

func (s *stubFeedBuilder) Build(ctx context.Context, wallet string) Feed {
	return Feed{Items: s.feeds[wallet]}
}

type recordingPublisher struct {
	published map[string][]domain.ActivityItem
	failFor   string
}

func (r *recordingPublisher) PublishActivity(ctx context.Context, wallet string, items []domain.ActivityItem) error {
	if wallet == r.failFor {
		return errors.New("broker unavailable")
	}
	if r.published == nil {
		r.published = make(map[string][]domain.ActivityItem)
	}
	r.published[wallet] = append(r.published[wallet], items...)
	return nil
}

type recordingExportObserver struct {
	exported map[string]int
	failed   []string
}

func (r *recordingExportObserver) OnWalletExported(wallet string, items int) {
	if r.exported == nil {
		r.exported = make(map[string]int)
	}
	r.exported[wallet] += items
}

func (r *recordingExportObserver) OnExportError(wallet string, err error) {
	r.failed = append(r.failed, wallet)
}

func feedItems(timestamps ...int64) []domain.ActivityItem {
	items := make([]domain.ActivityItem, 0, len(timestamps))
	for _, ts := range timestamps {
		items = append(items, domain.ActivityItem{Hash: "0x" + time.UnixMilli(ts).UTC().Format("150405"), Timestamp: ts})
	}
	return items
}

func TestExporter_PublishesOnlyNewItemsOldestFirst(t *testing.T) {
	store := newMemoryWalletStore()
	require.NoError(t, store.UpsertTrackedWallet(context.Background(), "0xa", time.Now()))
	require.NoError(t, store.SetExportedThrough(context.Background(), "0xa", 2000, []string{"0x000002"}))

	feeds := &stubFeedBuilder{feeds: map[string][]domain.ActivityItem{
		"0xa": feedItems(5000, 4000, 2000, 1000),
	}}
	publisher := &recordingPublisher{}
	observer := &recordingExportObserver{}
	exporter, err := NewExporter(store, feeds, publisher, observer, ExporterConfig{})
	require.NoError(t, err)

	require.NoError(t, exporter.ExportOnce(context.Background()))
	published := publisher.published["0xa"]
	require.Len(t, published, 2)
	require.Equal(t, int64(4000), published[0].Timestamp)
	require.Equal(t, int64(5000), published[1].Timestamp)
	require.Equal(t, 2, observer.exported["0xa"])

	wallets, err := store.ListTrackedWallets(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5000), wallets[0].ExportedThrough)

	require.NoError(t, exporter.ExportOnce(context.Background()))
	require.Len(t, publisher.published["0xa"], 2, "second round has nothing new")
}

func TestExporter_PublishesLateItemsAtCursorTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newMemoryWalletStore()
	require.NoError(t, store.UpsertTrackedWallet(ctx, "0xa", time.Now()))

	feeds := &stubFeedBuilder{feeds: map[string][]domain.ActivityItem{
		"0xa": {{Hash: "0xAA", Timestamp: 7000}},
	}}
	publisher := &recordingPublisher{}
	exporter, err := NewExporter(store, feeds, publisher, nil, ExporterConfig{})
	require.NoError(t, err)
	require.NoError(t, exporter.ExportOnce(ctx))

	// a transfer-only hash in the same second shows up one round later
	feeds.feeds["0xa"] = []domain.ActivityItem{{Hash: "0xbb", Timestamp: 7000}, {Hash: "0xaa", Timestamp: 7000}}
	require.NoError(t, exporter.ExportOnce(ctx))

	feeds.feeds["0xa"] = append([]domain.ActivityItem{{Hash: "0xcc", Timestamp: 8000}}, feeds.feeds["0xa"]...)
	require.NoError(t, exporter.ExportOnce(ctx))
	require.NoError(t, exporter.ExportOnce(ctx))

	var hashes []string
	for _, item := range publisher.published["0xa"] {
		hashes = append(hashes, item.Hash)
	}
	require.Equal(t, []string{"0xAA", "0xbb", "0xcc"}, hashes)

	wallets, err := store.ListTrackedWallets(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(8000), wallets[0].ExportedThrough)
	require.Equal(t, []string{"0xcc"}, wallets[0].ExportedHashes)
}

func TestExporter_SkipsFailingWallet(t *testing.T) {
	store := newMemoryWalletStore()
	for _, wallet := range []string{"0xa", "0xb"} {
		require.NoError(t, store.UpsertTrackedWallet(context.Background(), wallet, time.Now()))
	}
	feeds := &stubFeedBuilder{feeds: map[string][]domain.ActivityItem{
		"0xa": feedItems(10),
		"0xb": feedItems(20),
	}}
	publisher := &recordingPublisher{failFor: "0xa"}
	observer := &recordingExportObserver{}
	exporter, err := NewExporter(store, feeds, publisher, observer, ExporterConfig{})
	require.NoError(t, err)

	require.NoError(t, exporter.ExportOnce(context.Background()))
	require.Equal(t, []string{"0xa"}, observer.failed)
	require.Len(t, publisher.published["0xb"], 1)

	wallets, err := store.ListTrackedWallets(context.Background())
	require.NoError(t, err)
	require.Zero(t, wallets[0].ExportedThrough, "failed wallet keeps its cursor")
	require.Equal(t, int64(20), wallets[1].ExportedThrough)
}

func TestExporter_ListFailureIsReturned(t *testing.T) {
	store := newMemoryWalletStore()
	store.listErr = errors.New("db down")
	exporter, err := NewExporter(store, &stubFeedBuilder{}, &recordingPublisher{}, nil, ExporterConfig{})
	require.NoError(t, err)
	require.ErrorIs(t, exporter.ExportOnce(context.Background()), store.listErr)
}

func TestExporter_RunStopsOnCancel(t *testing.T) {
	exporter, err := NewExporter(newMemoryWalletStore(), &stubFeedBuilder{}, &recordingPublisher{}, nil, ExporterConfig{Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exporter.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("exporter did not stop")
	}
}

func TestNewExporter_RequiresDependencies(t *testing.T) {
	_, err := NewExporter(nil, &stubFeedBuilder{}, &recordingPublisher{}, nil, ExporterConfig{})
	require.Error(t, err)
}
