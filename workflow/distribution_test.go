package workflow

import (
	"errors"
	"testing"

	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
)

// NOTE: These tests are intentionally DB-free. computeDistribution carries the
// allocation semantics; the surrounding workflow only adds locking and
// persistence, which belongs in an environment that can run MySQL.

func candidate(itemId, rank int, orgUnit string, subTypes ...string) distributionCandidate {
	return distributionCandidate{
		Item: &models.RankingItem{ID: itemId, RankPosition: rank},
		App:  &models.Application{ID: itemId + 1000, OrgUnit: orgUnit, DeclaredSubTypes: subTypes},
	}
}

func mutationFor(t *testing.T, plan *distributionPlan, itemId int) itemMutation {
	t.Helper()
	for _, m := range plan.Mutations {
		if m.ItemId == itemId {
			return m
		}
	}
	t.Fatalf("no mutation for item %d", itemId)
	return itemMutation{}
}

func TestComputeDistributionEarlierRankWinsTheSlot(t *testing.T) {
	matrix := models.QuotaMatrix{"PPA": {"FMIPA": 1}}
	candidates := []distributionCandidate{
		candidate(1, 1, "FMIPA", "PPA"),
		candidate(2, 2, "FMIPA", "PPA"),
		candidate(3, 3, "FMIPA", "PPA"),
	}

	plan, err := computeDistribution(candidates, matrix)
	if err != nil {
		t.Fatalf("computeDistribution: %v", err)
	}

	if plan.Result.AllocatedCount != 1 || plan.Result.WaitlistedCount != 2 {
		t.Fatalf("expected 1 allocated / 2 waitlisted, got %d / %d", plan.Result.AllocatedCount, plan.Result.WaitlistedCount)
	}

	first := mutationFor(t, plan, 1)
	if !first.IsAllocated || first.Status != models.RankingItemStatusAllocated || *first.AllocatedSubType != "PPA" {
		t.Fatalf("expected rank 1 allocated to PPA, got %+v", first)
	}

	// Waitlisted items queue behind the cell in rank order.
	second := mutationFor(t, plan, 2)
	third := mutationFor(t, plan, 3)
	if second.Status != models.RankingItemStatusWaitlisted || third.Status != models.RankingItemStatusWaitlisted {
		t.Fatalf("expected ranks 2 and 3 waitlisted, got %+v %+v", second, third)
	}
	if pos, ok := second.BackupAllocations.PositionFor("PPA"); !ok || pos != 1 {
		t.Fatalf("expected rank 2 at backup position 1, got %d (found=%v)", pos, ok)
	}
	if pos, ok := third.BackupAllocations.PositionFor("PPA"); !ok || pos != 2 {
		t.Fatalf("expected rank 3 at backup position 2, got %d (found=%v)", pos, ok)
	}
}

func TestComputeDistributionFallsBackToNextDeclaredSubType(t *testing.T) {
	matrix := models.QuotaMatrix{
		"PPA": {"FMIPA": 1},
		"BBM": {"FMIPA": 1},
	}
	candidates := []distributionCandidate{
		candidate(1, 1, "FMIPA", "PPA"),
		candidate(2, 2, "FMIPA", "PPA", "BBM"),
	}

	plan, err := computeDistribution(candidates, matrix)
	if err != nil {
		t.Fatalf("computeDistribution: %v", err)
	}

	second := mutationFor(t, plan, 2)
	if !second.IsAllocated || *second.AllocatedSubType != "BBM" {
		t.Fatalf("expected rank 2 to fall back to BBM, got %+v", second)
	}
	if plan.Result.AllocatedCount != 2 {
		t.Fatalf("expected both allocated, got %d", plan.Result.AllocatedCount)
	}
}

func TestComputeDistributionIgnoresUnconfiguredCells(t *testing.T) {
	matrix := models.QuotaMatrix{"PPA": {"FMIPA": 1}}
	candidates := []distributionCandidate{
		// FT has no PPA cell; the candidate has nowhere to go and gets no
		// backup entry either.
		candidate(1, 1, "FT", "PPA"),
	}

	plan, err := computeDistribution(candidates, matrix)
	if err != nil {
		t.Fatalf("computeDistribution: %v", err)
	}

	m := mutationFor(t, plan, 1)
	if m.IsAllocated || m.Status != models.RankingItemStatusWaitlisted {
		t.Fatalf("expected waitlisted without allocation, got %+v", m)
	}
	if len(m.BackupAllocations) != 0 {
		t.Fatalf("expected no backup entries, got %v", m.BackupAllocations)
	}
}

func TestComputeDistributionBackupCountersArePerCell(t *testing.T) {
	matrix := models.QuotaMatrix{
		"PPA": {"FMIPA": 0, "FT": 0},
	}
	candidates := []distributionCandidate{
		candidate(1, 1, "FMIPA", "PPA"),
		candidate(2, 2, "FT", "PPA"),
		candidate(3, 3, "FMIPA", "PPA"),
	}

	plan, err := computeDistribution(candidates, matrix)
	if err != nil {
		t.Fatalf("computeDistribution: %v", err)
	}

	// Each cell keeps its own queue: FMIPA gets positions 1 and 2, FT gets 1.
	if pos, _ := mutationFor(t, plan, 1).BackupAllocations.PositionFor("PPA"); pos != 1 {
		t.Fatalf("expected FMIPA backup 1, got %d", pos)
	}
	if pos, _ := mutationFor(t, plan, 2).BackupAllocations.PositionFor("PPA"); pos != 1 {
		t.Fatalf("expected FT backup 1, got %d", pos)
	}
	if pos, _ := mutationFor(t, plan, 3).BackupAllocations.PositionFor("PPA"); pos != 2 {
		t.Fatalf("expected FMIPA backup 2, got %d", pos)
	}
}

func TestComputeDistributionRespectsQuotaCaps(t *testing.T) {
	matrix := models.QuotaMatrix{"PPA": {"FMIPA": 2}}
	var candidates []distributionCandidate
	for i := 1; i <= 5; i++ {
		candidates = append(candidates, candidate(i, i, "FMIPA", "PPA"))
	}

	plan, err := computeDistribution(candidates, matrix)
	if err != nil {
		t.Fatalf("computeDistribution: %v", err)
	}

	if plan.Result.AllocatedCount != 2 || plan.Result.WaitlistedCount != 3 {
		t.Fatalf("expected 2 allocated / 3 waitlisted, got %d / %d", plan.Result.AllocatedCount, plan.Result.WaitlistedCount)
	}
	if len(plan.Result.Cells) != 1 {
		t.Fatalf("expected one cell summary, got %d", len(plan.Result.Cells))
	}
	cell := plan.Result.Cells[0]
	if cell.Quota != 2 || cell.Allocated != 2 || cell.Backups != 3 {
		t.Fatalf("unexpected cell summary %+v", cell)
	}
}

func TestComputeDistributionRejectsMalformedMatrix(t *testing.T) {
	candidates := []distributionCandidate{candidate(1, 1, "FMIPA", "PPA")}

	for _, matrix := range []models.QuotaMatrix{
		{},
		{"PPA": {"FMIPA": -1}},
	} {
		if _, err := computeDistribution(candidates, matrix); !errors.Is(err, utils.ErrInvalidQuotaMatrix) {
			t.Fatalf("expected ErrInvalidQuotaMatrix, got %v", err)
		}
	}
}

func TestComputeDistributionCellSummariesAreSorted(t *testing.T) {
	matrix := models.QuotaMatrix{
		"PPA": {"FT": 1, "FMIPA": 1},
		"BBM": {"FMIPA": 1},
	}

	plan, err := computeDistribution(nil, matrix)
	if err != nil {
		t.Fatalf("computeDistribution: %v", err)
	}

	want := []cellKey{{"BBM", "FMIPA"}, {"PPA", "FMIPA"}, {"PPA", "FT"}}
	if len(plan.Result.Cells) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(plan.Result.Cells))
	}
	for i, w := range want {
		got := plan.Result.Cells[i]
		if got.SubType != w.SubType || got.OrgUnit != w.OrgUnit {
			t.Fatalf("cell %d: expected %s/%s, got %s/%s", i, w.SubType, w.OrgUnit, got.SubType, got.OrgUnit)
		}
	}
}
