package models

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportRosterToExcel writes the roster as a bank-ready payment spreadsheet.
// Excluded rows are exported too, with their exclusion reason, so the file is
// a complete record of the batch rather than just the payable subset.
func ExportRosterToExcel(export *RosterExport, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Roster"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{
		"No", "Student ID", "Student Name", "National ID",
		"Bank Code", "Account Number", "Account Holder",
		"Sub Type", "Org Unit", "Amount",
		"Included", "Verification", "Exclusion Reason",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	row := 2
	for i, item := range export.Items {
		values := []interface{}{
			i + 1,
			item.StudentId,
			item.StudentName,
			item.NationalId,
			item.BankCode,
			item.BankAccountNumber,
			item.BankAccountHolder,
			item.SubType,
			item.OrgUnit,
			item.ScholarshipAmount.StringFixed(2),
			item.IsIncluded,
			string(item.VerificationStatus),
			item.ExclusionReason,
		}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		row++
	}

	roster := export.Roster
	summary := [][2]interface{}{
		{"Roster Code", roster.RosterCode},
		{"Period", roster.PeriodLabel},
		{"Status", string(roster.Status)},
		{"Qualified", roster.QualifiedCount},
		{"Disqualified", roster.DisqualifiedCount},
		{"Total Amount", roster.TotalAmount.StringFixed(2)},
	}
	row++
	for _, pair := range summary {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), pair[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), pair[1]); err != nil {
			return err
		}
		row++
	}

	return f.SaveAs(filename)
}
