package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	attendancedb "ms-attendance/internal/attendance/db"
	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/models"
	"ms-attendance/internal/spreadsheet"
	"ms-attendance/internal/testutil"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Lock(ctx context.Context, eventID, owner string) (bool, error) {
	args := m.Called(ctx, eventID, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Unlock(ctx context.Context, eventID, owner string) error {
	args := m.Called(ctx, eventID, owner)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	args := m.Called(ctx, eventType, key, payload)
	return args.Error(0)
}

// failingStore runs the real transaction but lets a test replace single
// TxStore methods with failures.
type failingStore struct {
	inner attendance.Store
	wrap  func(attendance.TxStore) attendance.TxStore
}

func (s failingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx attendance.TxStore) error) error {
	return s.inner.RunInTx(ctx, func(ctx context.Context, tx attendance.TxStore) error {
		return fn(ctx, s.wrap(tx))
	})
}

type failLinks struct{ attendance.TxStore }

func (failLinks) CreateEventParticipants(context.Context, []models.EventParticipant) error {
	return errors.New("disk full")
}

type failBlocklist struct{ attendance.TxStore }

func (failBlocklist) CreateBlocklistEntry(context.Context, *models.BlocklistEntry) error {
	return errors.New("disk full")
}

// stepClock advances one second per call so rows written in order get
// strictly increasing timestamps.
func stepClock(start time.Time) attendance.Clock {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

var testStart = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	db    *bun.DB
	store *attendancedb.DB
	svc   *attendance.Service
}

func newHarness(t *testing.T, opts ...attendance.Option) *harness {
	t.Helper()
	bunDB := testutil.NewSQLiteDB(t)
	store := attendancedb.New(bunDB)
	opts = append([]attendance.Option{attendance.WithClock(stepClock(testStart))}, opts...)
	return &harness{db: bunDB, store: store, svc: attendance.NewAttendanceService(store, opts...)}
}

func row(name, email string) spreadsheet.ParticipantRow {
	return spreadsheet.ParticipantRow{FullName: name, Email: email}
}

func (h *harness) importEvent(t *testing.T, name, date string, rows ...spreadsheet.ParticipantRow) *attendance.ImportResult {
	t.Helper()
	res, err := h.svc.ImportEvent(context.Background(), attendance.ImportRequest{EventName: name, EventDate: date, Rows: rows})
	require.NoError(t, err)
	return res
}

func (h *harness) record(t *testing.T, eventID string, lists ...attendance.AttendanceList) *attendance.AttendanceSummary {
	t.Helper()
	sum, err := h.svc.RecordAttendance(context.Background(), attendance.AttendanceRequest{EventID: eventID, Lists: lists})
	require.NoError(t, err)
	return sum
}

func list(kind attendance.AttendanceKind, rows ...spreadsheet.ParticipantRow) attendance.AttendanceList {
	return attendance.AttendanceList{Kind: kind, Rows: rows}
}

func (h *harness) link(t *testing.T, eventID, email string) models.EventParticipant {
	t.Helper()
	var link models.EventParticipant
	err := h.db.NewSelect().
		Model(&link).
		Join("JOIN participants AS p ON p.id = ep.participant_id").
		Where("ep.event_id = ?", eventID).
		Where("p.email = ?", email).
		Scan(context.Background())
	require.NoError(t, err)
	return link
}

func (h *harness) participant(t *testing.T, email string) models.Participant {
	t.Helper()
	var p models.Participant
	require.NoError(t, h.db.NewSelect().Model(&p).Where("p.email = ?", email).Scan(context.Background()))
	return p
}

func (h *harness) noShowCount(t *testing.T, email string) int {
	t.Helper()
	n, err := h.db.NewSelect().
		Model((*models.NoShowHistory)(nil)).
		Join("JOIN participants AS p ON p.id = h.participant_id").
		Where("p.email = ?", email).
		Count(context.Background())
	require.NoError(t, err)
	return n
}

// blocklistEntry returns nil when the participant has no entry.
func (h *harness) blocklistEntry(t *testing.T, email string) *models.BlocklistEntry {
	t.Helper()
	var entries []models.BlocklistEntry
	err := h.db.NewSelect().
		Model(&entries).
		Join("JOIN participants AS p ON p.id = b.participant_id").
		Where("p.email = ?", email).
		Scan(context.Background())
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 1)
	if len(entries) == 0 {
		return nil
	}
	return &entries[0]
}

func (h *harness) count(t *testing.T, model any) int {
	t.Helper()
	n, err := h.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}
