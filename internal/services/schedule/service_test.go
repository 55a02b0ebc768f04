package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHours struct {
	rows []*domain.BusinessHours
	err  error
}

func (f fakeHours) GetBusinessHours(ctx context.Context, tenantID string) ([]*domain.BusinessHours, error) {
	return f.rows, f.err
}

func weekdays(open, close string) []*domain.BusinessHours {
	var rows []*domain.BusinessHours
	for d := time.Monday; d <= time.Friday; d++ {
		rows = append(rows, &domain.BusinessHours{DayOfWeek: d, OpenTime: open, CloseTime: close})
	}
	return rows
}

var tenant = &domain.Tenant{ID: "t1", Timezone: "America/New_York"}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestIsOpen(t *testing.T) {
	svc := NewService(fakeHours{rows: weekdays("09:00", "17:00")})
	ctx := context.Background()

	cases := []struct {
		when string
		open bool
	}{
		{"2024-03-04 09:00", true},  // Monday opening minute
		{"2024-03-04 16:59", true},  // Monday
		{"2024-03-04 17:00", false}, // closing minute is closed
		{"2024-03-04 08:59", false},
		{"2024-03-09 12:00", false}, // Saturday
	}
	for _, tc := range cases {
		open, err := svc.IsOpen(ctx, tenant, at(t, tc.when))
		require.NoError(t, err)
		assert.Equal(t, tc.open, open, tc.when)
	}
}

func TestIsOpenConvertsToTenantTimezone(t *testing.T) {
	svc := NewService(fakeHours{rows: weekdays("09:00", "17:00")})
	// 14:00 UTC on a Monday in March (after DST) is 10:00 in New York
	open, err := svc.IsOpen(context.Background(), tenant, time.Date(2024, 3, 11, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open)
}

func TestOverrideWins(t *testing.T) {
	svc := NewService(fakeHours{rows: weekdays("09:00", "17:00")})
	closed := &domain.Tenant{ID: "t1", ScheduleOverride: domain.ScheduleOverrideClosed}
	open, err := svc.IsOpen(context.Background(), closed, at(t, "2024-03-04 10:00"))
	require.NoError(t, err)
	assert.False(t, open)

	forced := &domain.Tenant{ID: "t1", ScheduleOverride: domain.ScheduleOverrideOpen}
	open, err = svc.IsOpen(context.Background(), forced, at(t, "2024-03-09 23:00"))
	require.NoError(t, err)
	assert.True(t, open)
}

func TestOvernightHours(t *testing.T) {
	svc := NewService(fakeHours{rows: []*domain.BusinessHours{
		{DayOfWeek: time.Friday, OpenTime: "18:00", CloseTime: "02:00"},
	}})
	ctx := context.Background()

	open, err := svc.IsOpen(ctx, tenant, at(t, "2024-03-08 23:30"))
	require.NoError(t, err)
	assert.True(t, open)

	open, err = svc.IsOpen(ctx, tenant, at(t, "2024-03-09 01:30"))
	require.NoError(t, err)
	assert.True(t, open, "Saturday early morning belongs to Friday night")

	open, err = svc.IsOpen(ctx, tenant, at(t, "2024-03-09 02:30"))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestFullWeeklySchedule(t *testing.T) {
	rows := weekdays("09:00", "17:30")
	rows = append(rows, &domain.BusinessHours{DayOfWeek: time.Saturday, Closed: true})
	svc := NewService(fakeHours{rows: rows})

	schedule, err := svc.FullWeeklySchedule(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t,
		"Monday: 9:00 AM - 5:30 PM; Tuesday: 9:00 AM - 5:30 PM; Wednesday: 9:00 AM - 5:30 PM; "+
			"Thursday: 9:00 AM - 5:30 PM; Friday: 9:00 AM - 5:30 PM; Saturday: Closed; Sunday: Closed",
		schedule)
}

func TestTodayHours(t *testing.T) {
	svc := NewService(fakeHours{rows: weekdays("09:00", "17:00")})
	ctx := context.Background()

	today, err := svc.TodayHours(ctx, tenant, at(t, "2024-03-04 08:00"))
	require.NoError(t, err)
	assert.Equal(t, "Today (Monday) we are open 9:00 AM to 5:00 PM.", today)

	today, err = svc.TodayHours(ctx, tenant, at(t, "2024-03-10 08:00"))
	require.NoError(t, err)
	assert.Equal(t, "We are closed today (Sunday).", today)
}

func TestErrorsAreClassified(t *testing.T) {
	svc := NewService(fakeHours{err: errors.New("db down")})
	_, err := svc.IsOpen(context.Background(), tenant, time.Now())
	assert.ErrorIs(t, err, domain.ErrPersistence)

	svc = NewService(fakeHours{rows: []*domain.BusinessHours{{DayOfWeek: time.Monday, OpenTime: "9am", CloseTime: "17:00"}}})
	_, err = svc.IsOpen(context.Background(), tenant, time.Now())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
