package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

// OpenChecker answers the business-hours predicates
type OpenChecker interface {
	IsOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) (bool, error)
}

// Provider values that mean the caller withheld their number
var withheldCallerIDs = map[string]bool{
	"":            true,
	"anonymous":   true,
	"restricted":  true,
	"unknown":     true,
	"private":     true,
	"+266696687":  true,
	"+7378742833": true,
}

func (e *Engine) evaluate(ctx context.Context, call *Call, predicate string) (bool, error) {
	switch predicate {
	case domain.PredicateBusinessOpen, domain.PredicateAfterHours:
		open, err := e.hours.IsOpen(ctx, call.Tenant, call.Now)
		if err != nil {
			return false, err
		}
		if predicate == domain.PredicateAfterHours {
			return !open, nil
		}
		return open, nil
	case domain.PredicateHasCallerID:
		return !withheldCallerIDs[strings.ToLower(strings.TrimSpace(call.Session.FromNumber))], nil
	}
	return false, fmt.Errorf("%w: unknown predicate %q", domain.ErrConfiguration, predicate)
}
