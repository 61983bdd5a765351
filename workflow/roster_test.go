package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
)

func TestGenerateRosterRejectsInvalidInput(t *testing.T) {
	logger := testLogger()
	audit := models.NoopAuditor{}

	cases := []RosterGenerationInput{
		{},
		{ConfigurationId: 1, PeriodLabel: "2026-ODD", ActorId: 1},                 // no ranking
		{ConfigurationId: 1, ActorId: 1, RankingId: 1},                           // no period
		{PeriodLabel: "2026-ODD", ActorId: 1, RankingId: 1},                      // no configuration
		{ConfigurationId: 1, PeriodLabel: "2026-ODD", RankingId: 1},              // no actor
		{ConfigurationId: -1, PeriodLabel: "2026-ODD", ActorId: 1, RankingId: 1}, // negative id
	}

	for i, input := range cases {
		input.VerificationEnabled = utils.NewFalse()
		_, err := GenerateRoster(context.Background(), nil, logger, audit, nil, input)
		var domainErr *utils.DomainError
		if !errors.As(err, &domainErr) || domainErr.Kind != utils.ErrorKindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestGenerateRosterRequiresVerifierWhenVerificationEnabled(t *testing.T) {
	input := RosterGenerationInput{
		ConfigurationId:     1,
		PeriodLabel:         "2026-ODD",
		ActorId:             1,
		RankingId:           1,
		VerificationEnabled: utils.NewTrue(),
	}

	_, err := GenerateRoster(context.Background(), nil, testLogger(), models.NoopAuditor{}, nil, input)
	var domainErr *utils.DomainError
	if !errors.As(err, &domainErr) || domainErr.Field != "verifier" {
		t.Fatalf("expected verifier validation error, got %v", err)
	}
}
