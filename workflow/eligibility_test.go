package workflow

import (
	"testing"
	"time"

	"github.com/mmcampusware/scholarship_backend/models"
)

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestAwardRecencyRule(t *testing.T) {
	rule := AwardRecencyRule{MaxYears: 3, Now: fixedNow}

	old := fixedNow().AddDate(-4, 0, 0)
	recent := fixedNow().AddDate(-2, 0, 0)

	if ok, reason := rule.Evaluate(&models.Application{PriorAwardDate: &old}, nil, nil); ok {
		t.Fatal("expected 4-year-old award to fail")
	} else if reason == "" {
		t.Fatal("expected a reason for the rejection")
	}
	if ok, _ := rule.Evaluate(&models.Application{PriorAwardDate: &recent}, nil, nil); !ok {
		t.Fatal("expected 2-year-old award to pass")
	}
	if ok, _ := rule.Evaluate(&models.Application{}, nil, nil); !ok {
		t.Fatal("expected candidate with no prior award to pass")
	}

	unlimited := AwardRecencyRule{MaxYears: 0, Now: fixedNow}
	if ok, _ := unlimited.Evaluate(&models.Application{PriorAwardDate: &old}, nil, nil); !ok {
		t.Fatal("expected zero max-years to disable the check")
	}
}

func TestWhitelistRule(t *testing.T) {
	if ok, _ := (WhitelistRule{}).Evaluate(&models.Application{WhitelistApproved: true}, nil, nil); !ok {
		t.Fatal("expected approved candidate to pass")
	}
	if ok, reason := (WhitelistRule{}).Evaluate(&models.Application{}, nil, nil); ok || reason == "" {
		t.Fatal("expected unapproved candidate to fail with a reason")
	}
}

func TestDefaultRuleRegistryWiresDoctoralSubTypes(t *testing.T) {
	cfg := &models.ScholarshipConfiguration{
		DoctoralSubTypes:        models.StringList{"S3-RESEARCH"},
		MaxYearsSincePriorAward: 3,
	}

	registry := DefaultRuleRegistry(cfg)
	if rules := registry.RulesFor("S3-RESEARCH"); len(rules) != 1 || rules[0].Name() != "award_recency" {
		t.Fatalf("expected award_recency rule for doctoral sub-type, got %v", rules)
	}
	if rules := registry.RulesFor("PPA"); len(rules) != 0 {
		t.Fatalf("expected no rules for PPA, got %v", rules)
	}

	if registry := DefaultRuleRegistry(nil); len(registry.RulesFor("S3-RESEARCH")) != 0 {
		t.Fatal("expected nil configuration to produce an empty registry")
	}
}
