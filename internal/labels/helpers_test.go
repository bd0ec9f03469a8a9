package labels

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/labeltrack-backend/internal/labelcodes"
	"github.com/angelmondragon/labeltrack-backend/internal/labelevents"
	"github.com/angelmondragon/labeltrack-backend/pkg/db"
	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedOp struct {
	operation string
	outcome   string
}

type fakeMetrics struct {
	mu        sync.Mutex
	ops       []recordedOp
	generated int
}

func (m *fakeMetrics) ObserveOperation(operation, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, recordedOp{operation: operation, outcome: outcome})
}

func (m *fakeMetrics) AddLabelsGenerated(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated += n
}

func (m *fakeMetrics) count(operation, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, op := range m.ops {
		if op.operation == operation && op.outcome == outcome {
			n++
		}
	}
	return n
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	repo    Repository
	events  labelevents.Service
	clock   *fakeClock
	metrics *fakeMetrics
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:labels_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func newFixture(t *testing.T, configure ...func(*ServiceParams)) *fixture {
	t.Helper()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	events, err := labelevents.NewService(labelevents.NewRepository(conn))
	require.NoError(t, err)
	gen, err := labelcodes.NewGenerator(labelcodes.Options{})
	require.NoError(t, err)

	clock := newFakeClock()
	rec := &fakeMetrics{}
	params := ServiceParams{
		Tx:      db.NewFromDB(conn),
		Repo:    repo,
		Events:  events,
		Codes:   gen,
		Metrics: rec,
		Logger:  logger.New(logger.Options{ServiceName: "labels-test", Output: io.Discard}),
		Clock:   clock.Now,
	}
	for _, fn := range configure {
		fn(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &fixture{db: conn, svc: svc, repo: repo, events: events, clock: clock, metrics: rec}
}

func (f *fixture) generateOne(t *testing.T) models.Label {
	t.Helper()
	res, err := f.svc.Generate(context.Background(), GenerateInput{
		SKUID:       uuid.New(),
		Quantity:    1,
		ActorUserID: uuid.New(),
	})
	require.NoError(t, err)
	require.Len(t, res.Labels, 1)
	return res.Labels[0]
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) eventTypes(t *testing.T, labelID uuid.UUID) []string {
	t.Helper()
	events, err := f.events.List(context.Background(), labelID, labelevents.SeqPage{})
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i].EventType.String())
	}
	return out
}

// scriptedCodes hands out predetermined codes without consulting the store.
type scriptedCodes struct {
	mu      sync.Mutex
	batches [][]string
	calls   int
}

func (s *scriptedCodes) next() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.batches) {
		idx = len(s.batches) - 1
	}
	s.calls++
	return s.batches[idx]
}

func (s *scriptedCodes) NewUniqueCode(context.Context, labelcodes.ExistsFunc) (string, error) {
	return s.next()[0], nil
}

func (s *scriptedCodes) NewBatchCodes(_ context.Context, n int, _ labelcodes.ExistsFunc) ([]string, error) {
	return s.next()[:n], nil
}

func indexedSuffix(i int) string {
	b := make([]byte, labelcodes.DefaultLength)
	for p := len(b) - 1; p >= 0; p-- {
		b[p] = labelcodes.Alphabet[i%len(labelcodes.Alphabet)]
		i /= len(labelcodes.Alphabet)
	}
	return string(b)
}

func strPtr(v string) *string { return &v }
