package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"go.uber.org/zap"
)

// HoursSource loads the weekly hours of a tenant
type HoursSource interface {
	GetBusinessHours(ctx context.Context, tenantID string) ([]*domain.BusinessHours, error)
}

// Service answers open/closed questions in the tenant's timezone
type Service struct {
	hours HoursSource
}

// NewService creates a schedule service
func NewService(hours HoursSource) *Service {
	return &Service{hours: hours}
}

// weekOrder is the order days are spoken in
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

type span struct {
	open, close int // minutes after midnight; close may exceed 24h for overnight hours
}

// IsOpen reports whether the tenant is open at the given instant
func (s *Service) IsOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) (bool, error) {
	switch tenant.ScheduleOverride {
	case domain.ScheduleOverrideOpen:
		return true, nil
	case domain.ScheduleOverrideClosed:
		return false, nil
	}

	week, err := s.week(ctx, tenant.ID)
	if err != nil {
		return false, err
	}

	local := at.In(Location(tenant))
	minute := local.Hour()*60 + local.Minute()

	if sp, ok := week[local.Weekday()]; ok && minute >= sp.open && minute < sp.close {
		return true, nil
	}
	// Overnight hours that started yesterday
	yesterday := (local.Weekday() + 6) % 7
	if sp, ok := week[yesterday]; ok && sp.close > 24*60 && minute < sp.close-24*60 {
		return true, nil
	}
	return false, nil
}

// TodayHours describes the hours of the tenant's current local day
func (s *Service) TodayHours(ctx context.Context, tenant *domain.Tenant, at time.Time) (string, error) {
	week, err := s.week(ctx, tenant.ID)
	if err != nil {
		return "", err
	}
	day := at.In(Location(tenant)).Weekday()
	sp, ok := week[day]
	if !ok {
		return fmt.Sprintf("We are closed today (%s).", day), nil
	}
	return fmt.Sprintf("Today (%s) we are open %s to %s.", day, formatMinutes(sp.open), formatMinutes(sp.close)), nil
}

// FullWeeklySchedule lists every day Monday through Sunday
func (s *Service) FullWeeklySchedule(ctx context.Context, tenant *domain.Tenant) (string, error) {
	week, err := s.week(ctx, tenant.ID)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(weekOrder))
	for _, day := range weekOrder {
		sp, ok := week[day]
		if !ok {
			parts = append(parts, fmt.Sprintf("%s: Closed", day))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s - %s", day, formatMinutes(sp.open), formatMinutes(sp.close)))
	}
	return strings.Join(parts, "; "), nil
}

// Location resolves the tenant timezone, falling back to the service default
func Location(tenant *domain.Tenant) *time.Location {
	name := tenant.Timezone
	if name == "" {
		name = config.DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Base().Warn("Unknown tenant timezone, using UTC",
			zap.String("tenant_id", tenant.ID), zap.String("timezone", name))
		return time.UTC
	}
	return loc
}

func (s *Service) week(ctx context.Context, tenantID string) (map[time.Weekday]span, error) {
	rows, err := s.hours.GetBusinessHours(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	week := make(map[time.Weekday]span, len(rows))
	for _, row := range rows {
		if row.Closed {
			continue
		}
		open, err := parseClock(row.OpenTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		closing, err := parseClock(row.CloseTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		if closing <= open {
			closing += 24 * 60
		}
		week[row.DayOfWeek] = span{open: open, close: closing}
	}
	return week, nil
}

func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}

func formatMinutes(total int) string {
	total %= 24 * 60
	h, m := total/60, total%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}
