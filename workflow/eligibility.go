package workflow

import (
	"fmt"
	"time"

	"github.com/mmcampusware/scholarship_backend/models"
)

// EligibilityRule is one pluggable promotion check. Rules are pure: they see
// the candidate, the student they would replace, and the scholarship
// configuration, and return (eligible, reason).
type EligibilityRule interface {
	Name() string
	Evaluate(candidate *models.Application, original *models.Application, cfg *models.ScholarshipConfiguration) (bool, string)
}

// RuleRegistry maps sub-type codes to their rules so promotion never branches
// on sub-type strings itself.
type RuleRegistry struct {
	rules map[string][]EligibilityRule
}

func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{rules: map[string][]EligibilityRule{}}
}

func (r *RuleRegistry) Register(subType string, rule EligibilityRule) {
	r.rules[subType] = append(r.rules[subType], rule)
}

func (r *RuleRegistry) RulesFor(subType string) []EligibilityRule {
	return r.rules[subType]
}

// DefaultRuleRegistry wires the standing rules from the configuration:
// doctoral sub-types get the award-recency check.
func DefaultRuleRegistry(cfg *models.ScholarshipConfiguration) *RuleRegistry {
	registry := NewRuleRegistry()
	if cfg == nil {
		return registry
	}
	for _, subType := range cfg.DoctoralSubTypes {
		registry.Register(subType, AwardRecencyRule{MaxYears: cfg.MaxYearsSincePriorAward})
	}
	return registry
}

// AwardRecencyRule rejects doctoral candidates whose prior award is older
// than the configured maximum; their continuing eligibility has lapsed.
// Candidates with no prior award pass.
type AwardRecencyRule struct {
	MaxYears int
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (r AwardRecencyRule) Name() string { return "award_recency" }

func (r AwardRecencyRule) Evaluate(candidate *models.Application, original *models.Application, cfg *models.ScholarshipConfiguration) (bool, string) {
	if candidate.PriorAwardDate == nil || r.MaxYears <= 0 {
		return true, ""
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	cutoff := now.AddDate(-r.MaxYears, 0, 0)
	if candidate.PriorAwardDate.Before(cutoff) {
		return false, fmt.Sprintf("prior award on %s exceeds %d-year limit", candidate.PriorAwardDate.Format("2006-01-02"), r.MaxYears)
	}
	return true, ""
}

// WhitelistRule requires explicit whitelist approval. It is applied before
// sub-type rules whenever the configuration enables whitelisting.
type WhitelistRule struct{}

func (WhitelistRule) Name() string { return "whitelist" }

func (WhitelistRule) Evaluate(candidate *models.Application, original *models.Application, cfg *models.ScholarshipConfiguration) (bool, string) {
	if candidate.WhitelistApproved {
		return true, ""
	}
	return false, "candidate is not on the approved whitelist"
}
