package attendance_test

import (
	"context"
	"testing"
	"time"

	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"
	"ms-attendance/internal/spreadsheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	ada = row("Ada", "ada@example.com")
	bob = row("Bob", "bob@example.com")
	cy  = row("Cy", "cy@example.com")
)

func TestRecordAttendance_RequestErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.RecordAttendance(ctx, attendance.AttendanceRequest{EventID: "  ", Lists: []attendance.AttendanceList{list(attendance.KindAttended, ada)}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.RecordAttendance(ctx, attendance.AttendanceRequest{EventID: "e1"})
	assert.ErrorIs(t, err, domain.ErrInput)

	_, err = h.svc.RecordAttendance(ctx, attendance.AttendanceRequest{EventID: "e1", Lists: []attendance.AttendanceList{list(attendance.AttendanceKind(7), ada)}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.RecordAttendance(ctx, attendance.AttendanceRequest{EventID: "missing", Lists: []attendance.AttendanceList{list(attendance.KindAttended, ada)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordAttendance_EmptyListsOnKnownEvent(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)

	_, err := h.svc.RecordAttendance(context.Background(), attendance.AttendanceRequest{
		EventID: res.Event.ID,
		Lists:   []attendance.AttendanceList{list(attendance.KindAttended), list(attendance.KindNoShow, row("Blank", " "))},
	})

	assert.ErrorIs(t, err, domain.ErrInput)
	assert.Equal(t, "Uploaded files do not contain any participants", domain.Message(err))
}

func TestRecordAttendance_Attended(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada, bob)

	sum := h.record(t, res.Event.ID, list(attendance.KindAttended, ada, row("ADA", "Ada@Example.com")))

	assert.Equal(t, attendance.AttendanceSummary{TotalAttendedMarked: 1, MissingParticipants: []string{}}, *sum)
	assert.Equal(t, models.StatusAttended, h.link(t, res.Event.ID, "ada@example.com").Status)
	assert.Equal(t, models.StatusConfirmed, h.link(t, res.Event.ID, "bob@example.com").Status)
	assert.Zero(t, h.count(t, (*models.NoShowHistory)(nil)))
}

func TestRecordAttendance_MissingParticipants(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)

	sum := h.record(t, res.Event.ID,
		list(attendance.KindAttended, ada, row("Ghost", "ghost@example.com")),
		list(attendance.KindNoShow, row("Ghost", "ghost@example.com")),
	)

	assert.Equal(t, 1, sum.TotalAttendedMarked)
	assert.Equal(t, []string{"ghost@example.com", "ghost@example.com"}, sum.MissingParticipants)
	assert.Equal(t, 1, h.count(t, (*models.Participant)(nil)), "unknown emails never create participants")
}

func TestRecordAttendance_CreatesLinkForKnownParticipant(t *testing.T) {
	h := newHarness(t)
	h.importEvent(t, "First", "2025-01-10", bob)
	second := h.importEvent(t, "Second", "2025-02-10", ada)

	sum := h.record(t, second.Event.ID, list(attendance.KindAttended, bob))

	assert.Equal(t, 1, sum.TotalAttendedMarked)
	assert.Equal(t, models.StatusAttended, h.link(t, second.Event.ID, "bob@example.com").Status)
}

func TestRecordAttendance_FirstNoShowBelowThreshold(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)

	sum := h.record(t, res.Event.ID, list(attendance.KindNoShow, ada))

	assert.Equal(t, 1, sum.TotalNoShowsMarked)
	link := h.link(t, res.Event.ID, "ada@example.com")
	assert.Equal(t, models.StatusNoShow, link.Status)
	assert.True(t, link.FlaggedNoShow)
	assert.False(t, link.FlaggedBlocklist)
	assert.Equal(t, 1, h.noShowCount(t, "ada@example.com"))
	assert.Nil(t, h.blocklistEntry(t, "ada@example.com"))
}

func TestRecordAttendance_RepeatedUploadKeepsOneHistoryRow(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)

	h.record(t, res.Event.ID, list(attendance.KindNoShow, ada))
	h.record(t, res.Event.ID, list(attendance.KindNoShow, ada))
	h.record(t, res.Event.ID, list(attendance.KindNoShow, ada), list(attendance.KindNoShow, ada))

	assert.Equal(t, 1, h.noShowCount(t, "ada@example.com"))
	assert.Nil(t, h.blocklistEntry(t, "ada@example.com"), "one event never reaches the threshold")
}

func TestRecordAttendance_AttendedRerunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)

	h.record(t, res.Event.ID, list(attendance.KindAttended, ada))
	first := h.link(t, res.Event.ID, "ada@example.com")
	sum := h.record(t, res.Event.ID, list(attendance.KindAttended, ada))
	second := h.link(t, res.Event.ID, "ada@example.com")

	assert.Equal(t, 1, sum.TotalAttendedMarked)
	assert.Equal(t, models.StatusAttended, second.Status)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.FlaggedNoShow, second.FlaggedNoShow)
	assert.Equal(t, first.FlaggedBlocklist, second.FlaggedBlocklist)
	assert.False(t, second.FlaggedNoShow)
	assert.False(t, second.FlaggedBlocklist)
	assert.Zero(t, h.noShowCount(t, "ada@example.com"))
	assert.Nil(t, h.blocklistEntry(t, "ada@example.com"))
}

func TestCheckEvent(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)
	ctx := context.Background()

	assert.NoError(t, h.svc.CheckEvent(ctx, res.Event.ID))
	assert.ErrorIs(t, h.svc.CheckEvent(ctx, "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, h.svc.CheckEvent(ctx, " "), domain.ErrValidation)
}

func TestRecordAttendance_ThresholdPromotion(t *testing.T) {
	h := newHarness(t)
	first := h.importEvent(t, "January", "2025-01-10", ada)
	h.record(t, first.Event.ID, list(attendance.KindNoShow, ada))
	second := h.importEvent(t, "February", "2025-02-10", ada)

	sum := h.record(t, second.Event.ID, list(attendance.KindNoShow, ada))

	assert.Equal(t, 1, sum.TotalNoShowsMarked)
	assert.Zero(t, sum.TotalBlocklisted, "threshold promotions are not manual blocklistings")
	entry := h.blocklistEntry(t, "ada@example.com")
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.TotalNoShows)
	assert.Equal(t, first.Event.ID, entry.FirstNoShowEventID)
	assert.True(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC).Equal(entry.FirstNoShowAt))

	link := h.link(t, second.Event.ID, "ada@example.com")
	assert.Equal(t, models.StatusNoShow, link.Status)
	assert.True(t, link.FlaggedNoShow)
	assert.True(t, link.FlaggedBlocklist)

	third := h.importEvent(t, "March", "2025-03-10", ada)
	assert.Equal(t, 1, third.Summary.FlaggedBlocklisted)
	h.record(t, third.Event.ID, list(attendance.KindNoShow, ada))

	entry = h.blocklistEntry(t, "ada@example.com")
	assert.Equal(t, 3, entry.TotalNoShows, "existing entry follows the history count")
	assert.Equal(t, first.Event.ID, entry.FirstNoShowEventID)
}

func TestRecordAttendance_NoShowResyncsManualEntry(t *testing.T) {
	h := newHarness(t)
	first := h.importEvent(t, "January", "2025-01-10", ada)
	// Two lists of one kind are merged, so this bumps the entry once.
	h.record(t, first.Event.ID, list(attendance.KindBlocklisted, ada), list(attendance.KindBlocklisted, ada))
	h.record(t, first.Event.ID, list(attendance.KindBlocklisted, ada))
	h.record(t, first.Event.ID, list(attendance.KindBlocklisted, ada))
	require.Equal(t, 3, h.blocklistEntry(t, "ada@example.com").TotalNoShows)

	h.record(t, first.Event.ID, list(attendance.KindNoShow, ada))
	second := h.importEvent(t, "February", "2025-02-10", ada)
	h.record(t, second.Event.ID, list(attendance.KindNoShow, ada))

	entry := h.blocklistEntry(t, "ada@example.com")
	assert.Equal(t, 2, entry.TotalNoShows, "reset to the recorded no-show count")
	assert.Equal(t, first.Event.ID, entry.FirstNoShowEventID)
	assert.Equal(t, 1, h.count(t, (*models.BlocklistEntry)(nil)))
}

func TestRecordAttendance_ManualBlocklist(t *testing.T) {
	h := newHarness(t)
	first := h.importEvent(t, "January", "2025-01-10", ada, bob)
	h.record(t, first.Event.ID, list(attendance.KindAttended, ada))

	sum := h.record(t, first.Event.ID, list(attendance.KindBlocklisted, ada, bob))

	assert.Equal(t, 2, sum.TotalBlocklisted)
	link := h.link(t, first.Event.ID, "ada@example.com")
	assert.Equal(t, models.StatusAttended, link.Status, "manual blocklisting keeps the status")
	assert.True(t, link.FlaggedBlocklist)
	assert.Equal(t, models.StatusConfirmed, h.link(t, first.Event.ID, "bob@example.com").Status)

	entry := h.blocklistEntry(t, "ada@example.com")
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.TotalNoShows)
	assert.Equal(t, first.Event.ID, entry.FirstNoShowEventID)
	assert.Zero(t, h.noShowCount(t, "ada@example.com"), "manual blocklisting writes no history")

	second := h.importEvent(t, "February", "2025-02-10", ada)
	h.record(t, second.Event.ID, list(attendance.KindBlocklisted, ada))

	entry = h.blocklistEntry(t, "ada@example.com")
	assert.Equal(t, 2, entry.TotalNoShows)
	assert.Equal(t, first.Event.ID, entry.FirstNoShowEventID, "anchor is kept")
}

func TestRecordAttendance_ListOrder(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada, bob, cy)

	// Lists arrive out of order; attended is applied first, then no-show,
	// then blocklisted.
	sum := h.record(t, res.Event.ID,
		list(attendance.KindBlocklisted, cy),
		list(attendance.KindNoShow, ada, cy),
		list(attendance.KindAttended, ada, bob, cy),
	)

	assert.Equal(t, attendance.AttendanceSummary{
		TotalAttendedMarked: 3,
		TotalNoShowsMarked:  2,
		TotalBlocklisted:    1,
		MissingParticipants: []string{},
	}, *sum)

	assert.Equal(t, models.StatusNoShow, h.link(t, res.Event.ID, "ada@example.com").Status)
	assert.Equal(t, models.StatusAttended, h.link(t, res.Event.ID, "bob@example.com").Status)

	cyLink := h.link(t, res.Event.ID, "cy@example.com")
	assert.Equal(t, models.StatusNoShow, cyLink.Status)
	assert.True(t, cyLink.FlaggedNoShow)
	assert.True(t, cyLink.FlaggedBlocklist)
}

func TestRecordAttendance_AttendedClearsFlags(t *testing.T) {
	h := newHarness(t)
	first := h.importEvent(t, "January", "2025-01-10", ada)
	h.record(t, first.Event.ID, list(attendance.KindNoShow, ada))
	second := h.importEvent(t, "February", "2025-02-10", ada)
	require.True(t, h.link(t, second.Event.ID, "ada@example.com").FlaggedNoShow)

	h.record(t, second.Event.ID, list(attendance.KindAttended, ada))

	link := h.link(t, second.Event.ID, "ada@example.com")
	assert.Equal(t, models.StatusAttended, link.Status)
	assert.False(t, link.FlaggedNoShow)
	assert.False(t, link.FlaggedBlocklist)
	assert.Equal(t, 1, h.noShowCount(t, "ada@example.com"), "history is append-only")
}

func TestRecordAttendance_RollsBackOnFailure(t *testing.T) {
	h := newHarness(t)
	first := h.importEvent(t, "January", "2025-01-10", ada)
	h.record(t, first.Event.ID, list(attendance.KindNoShow, ada))
	second := h.importEvent(t, "February", "2025-02-10", ada, bob)

	svc := attendance.NewAttendanceService(failingStore{
		inner: h.store,
		wrap:  func(tx attendance.TxStore) attendance.TxStore { return failBlocklist{tx} },
	})
	_, err := svc.RecordAttendance(context.Background(), attendance.AttendanceRequest{
		EventID: second.Event.ID,
		Lists: []attendance.AttendanceList{
			list(attendance.KindAttended, bob),
			list(attendance.KindNoShow, ada),
		},
	})

	require.ErrorIs(t, err, domain.ErrStore)
	assert.Equal(t, models.StatusConfirmed, h.link(t, second.Event.ID, "bob@example.com").Status)
	assert.Equal(t, models.StatusConfirmed, h.link(t, second.Event.ID, "ada@example.com").Status)
	assert.Equal(t, 1, h.noShowCount(t, "ada@example.com"))
	assert.Nil(t, h.blocklistEntry(t, "ada@example.com"))
}

func TestRecordAttendance_LockConflict(t *testing.T) {
	locker := new(MockLocker)
	locker.On("Lock", mock.Anything, "e1", mock.AnythingOfType("string")).Return(false, nil)
	h := newHarness(t, attendance.WithLocker(locker))

	_, err := h.svc.RecordAttendance(context.Background(), attendance.AttendanceRequest{
		EventID: "e1",
		Lists:   []attendance.AttendanceList{list(attendance.KindAttended, ada)},
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	locker.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordAttendance_ReleasesLock(t *testing.T) {
	locker := new(MockLocker)
	locker.On("Lock", mock.Anything, mock.Anything, "lock-owner").Return(true, nil)
	locker.On("Unlock", mock.Anything, mock.Anything, "lock-owner").Return(nil)
	h := newHarness(t, attendance.WithLocker(locker), attendance.WithIDGenerator(func() string { return "lock-owner" }))

	_, err := h.svc.RecordAttendance(context.Background(), attendance.AttendanceRequest{
		EventID: "missing",
		Lists:   []attendance.AttendanceList{list(attendance.KindAttended, ada)},
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	locker.AssertCalled(t, "Unlock", mock.Anything, "missing", "lock-owner")
}

func TestRecordAttendance_PublishesChanges(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h := newHarness(t, attendance.WithPublisher(pub))
	first := h.importEvent(t, "January", "2025-01-10", ada, bob)
	h.record(t, first.Event.ID, list(attendance.KindNoShow, ada))
	second := h.importEvent(t, "February", "2025-02-10", ada, bob)
	ids := map[string]string{
		"ada@example.com": h.participant(t, "ada@example.com").ID,
		"bob@example.com": h.participant(t, "bob@example.com").ID,
	}

	sum := h.record(t, second.Event.ID, list(attendance.KindNoShow, ada), list(attendance.KindBlocklisted, bob))

	pub.AssertCalled(t, "Publish", mock.Anything, attendance.AttendanceRecorded, second.Event.ID, *sum)
	pub.AssertCalled(t, "Publish", mock.Anything, attendance.ParticipantBlocklisted, ids["ada@example.com"], attendance.BlocklistChange{
		ParticipantID: ids["ada@example.com"], EventID: second.Event.ID, TotalNoShows: 2, Source: "threshold", Created: true,
	})
	pub.AssertCalled(t, "Publish", mock.Anything, attendance.ParticipantBlocklisted, ids["bob@example.com"], attendance.BlocklistChange{
		ParticipantID: ids["bob@example.com"], EventID: second.Event.ID, TotalNoShows: 1, Source: "manual", Created: true,
	})
}

func TestOrderListsIgnoresBlankEmails(t *testing.T) {
	h := newHarness(t)
	res := h.importEvent(t, "Meetup", "2025-03-01", ada)

	sum := h.record(t, res.Event.ID, list(attendance.KindAttended, spreadsheet.ParticipantRow{FullName: "Blank"}, ada))

	assert.Equal(t, 1, sum.TotalAttendedMarked)
	assert.Empty(t, sum.MissingParticipants)
}
