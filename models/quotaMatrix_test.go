package models_test

import (
	"errors"
	"testing"

	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
)

func TestQuotaMatrixValidate(t *testing.T) {
	valid := models.QuotaMatrix{
		"PPA": {"FMIPA": 5, "FT": 0},
		"BBM": {"FMIPA": 3},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid matrix, got %v", err)
	}

	invalid := []models.QuotaMatrix{
		{},
		{"": {"FMIPA": 1}},
		{"PPA": {" ": 1}},
		{"PPA": {"FMIPA": -1}},
	}
	for i, m := range invalid {
		if err := m.Validate(); !errors.Is(err, utils.ErrInvalidQuotaMatrix) {
			t.Fatalf("case %d: expected ErrInvalidQuotaMatrix, got %v", i, err)
		}
	}
}

func TestQuotaMatrixHasCellAndTotal(t *testing.T) {
	m := models.QuotaMatrix{
		"PPA": {"FMIPA": 5, "FT": 0},
		"BBM": {"FMIPA": 3},
	}

	if !m.HasCell("PPA", "FMIPA") {
		t.Fatal("expected PPA/FMIPA cell")
	}
	// A zero-quota cell is still configured.
	if !m.HasCell("PPA", "FT") {
		t.Fatal("expected PPA/FT cell")
	}
	if m.HasCell("PPA", "FK") || m.HasCell("XYZ", "FMIPA") {
		t.Fatal("unexpected cell reported")
	}
	if got := m.TotalQuota(); got != 8 {
		t.Fatalf("expected total quota 8, got %d", got)
	}
}
