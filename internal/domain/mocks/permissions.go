package mocks

import (
	"context"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// PermissionChecker is a mock implementation of ports.PermissionChecker.
// Ranges are keyed by user name, then category.
type PermissionChecker struct {
	Ranges map[string]map[string]entities.PermissionRange
	Err    error
}

var _ ports.PermissionChecker = (*PermissionChecker)(nil)

// NewPermissionChecker creates a mock with no rights granted.
func NewPermissionChecker() *PermissionChecker {
	return &PermissionChecker{Ranges: make(map[string]map[string]entities.PermissionRange)}
}

// Grant gives user the range min..max in category.
func (m *PermissionChecker) Grant(user, category string, minValue, maxValue int16) *PermissionChecker {
	if m.Ranges[user] == nil {
		m.Ranges[user] = make(map[string]entities.PermissionRange)
	}
	m.Ranges[user][category] = entities.PermissionRange{Min: minValue, Max: maxValue}
	return m
}

// Range returns the granted range, or the empty range.
func (m *PermissionChecker) Range(_ context.Context, user entities.User, _, category string) (entities.PermissionRange, error) {
	if m.Err != nil {
		return entities.PermissionRange{}, m.Err
	}
	return m.Ranges[user.Name][category], nil
}
