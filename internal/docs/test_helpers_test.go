package docs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("%s-%04d", p.prefix, p.next), nil
}

type failingIDProvider struct{}

func (failingIDProvider) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

// steppingClock advances one second on every reading so ordering by
// timestamps is deterministic.
type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Unix(1700000000, 0).UTC()}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type memoryVersionCache struct {
	mu       sync.Mutex
	versions map[VersionID]Version
	stores   int
	evicted  []VersionID
}

func newMemoryVersionCache() *memoryVersionCache {
	return &memoryVersionCache{versions: make(map[VersionID]Version)}
}

func (c *memoryVersionCache) GetVersion(_ context.Context, versionID VersionID) (Version, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	version, ok := c.versions[versionID]
	return version, ok, nil
}

func (c *memoryVersionCache) StoreVersion(_ context.Context, version Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.versions[VersionID(version.ID)] = version
	return nil
}

func (c *memoryVersionCache) EvictVersions(_ context.Context, versionIDs ...VersionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range versionIDs {
		delete(c.versions, id)
		c.evicted = append(c.evicted, id)
	}
	return nil
}

type operationSample struct {
	operation string
	outcome   string
}

type recordingMetrics struct {
	mu         sync.Mutex
	operations []operationSample
	hits       int
	misses     int
}

func (m *recordingMetrics) ObserveOperation(operation, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, operationSample{operation: operation, outcome: outcome})
}

func (m *recordingMetrics) RecordCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
		return
	}
	m.misses++
}

type testHarness struct {
	service *Service
	db      *gorm.DB
	events  *recordingPublisher
	cache   *memoryVersionCache
	metrics *recordingMetrics
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docrev_test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func newHarness(t *testing.T, mutate ...func(*ServiceConfig)) testHarness {
	t.Helper()
	db := openTestDatabase(t)
	harness := testHarness{
		db:      db,
		events:  &recordingPublisher{},
		cache:   newMemoryVersionCache(),
		metrics: &recordingMetrics{},
	}
	cfg := ServiceConfig{
		Database:     db,
		Clock:        newSteppingClock().Now,
		IDProvider:   &sequenceIDProvider{prefix: "id"},
		VersionCache: harness.cache,
		Events:       harness.events,
		Metrics:      harness.metrics,
	}
	for _, apply := range mutate {
		apply(&cfg)
	}
	service, err := NewService(cfg)
	require.NoError(t, err)
	harness.service = service
	return harness
}

func (h testHarness) createDocument(t *testing.T, owner UserID, content string) DocumentView {
	t.Helper()
	view, err := h.service.Create(context.Background(), CreateDocumentRequest{
		OwnerID: owner,
		Title:   "Handbook",
		Content: content,
	})
	require.NoError(t, err)
	return view
}

func (h testHarness) submit(t *testing.T, documentID string, author UserID, content string) Suggestion {
	t.Helper()
	suggestion, err := h.service.Submit(context.Background(), SubmitRequest{
		DocumentID: DocumentID(documentID),
		AuthorID:   author,
		Title:      "Edit " + content,
		Content:    content,
	})
	require.NoError(t, err)
	return suggestion
}

func (h testHarness) count(t *testing.T, model any, documentID string) int64 {
	t.Helper()
	var total int64
	require.NoError(t, h.db.Model(model).Where("document_id = ?", documentID).Count(&total).Error)
	return total
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr), "expected ServiceError, got %v", err)
	require.Equal(t, code, serviceErr.Code())
}
