package models

import (
	"strings"

	"github.com/mmcampusware/scholarship_backend/utils"
)

// QuotaMatrix maps sub-type code -> organizational-unit code -> seat count.
// It is a read-only configuration value, never a persisted entity.
type QuotaMatrix map[string]map[string]int

// Validate rejects empty codes and negative quotas before any allocation runs.
func (m QuotaMatrix) Validate() error {
	if len(m) == 0 {
		return utils.ErrInvalidQuotaMatrix
	}
	for subType, units := range m {
		if strings.TrimSpace(subType) == "" {
			return utils.ErrInvalidQuotaMatrix
		}
		for unit, quota := range units {
			if strings.TrimSpace(unit) == "" {
				return utils.ErrInvalidQuotaMatrix
			}
			if quota < 0 {
				return utils.ErrInvalidQuotaMatrix
			}
		}
	}
	return nil
}

// HasCell reports whether the (sub-type, unit) cell is configured at all,
// regardless of remaining quota.
func (m QuotaMatrix) HasCell(subType, orgUnit string) bool {
	units, ok := m[subType]
	if !ok {
		return false
	}
	_, ok = units[orgUnit]
	return ok
}

// TotalQuota sums every cell.
func (m QuotaMatrix) TotalQuota() int {
	total := 0
	for _, units := range m {
		for _, quota := range units {
			total += quota
		}
	}
	return total
}
