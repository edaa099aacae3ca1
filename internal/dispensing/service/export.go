package service

import (
	"context"
	"fmt"
	"io"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/xuri/excelize/v2"
)

// ExportMaxRows caps the rows written to one dispensation export
const ExportMaxRows = 50000

const exportSheet = "Dispensations"

var exportHeaders = []string{
	"ID", "Dispensed At", "Patient", "Medication", "Lot", "Health Post", "Quantity", "Staff", "Note",
}

// ExportDispensations writes the dispensation log matching filter as an xlsx workbook
func (s *FulfillmentService) ExportDispensations(ctx context.Context, filter domain.DispensationFilter, w io.Writer) error {
	filter.Limit = ExportMaxRows
	filter.Offset = 0

	rows, _, err := s.dispensations.List(ctx, filter)
	if err != nil {
		return s.classify(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("failed to name export sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write export header: %w", err)
		}
	}

	for i, d := range rows {
		row := i + 2
		note := ""
		if d.Note != nil {
			note = *d.Note
		}
		values := []interface{}{
			d.ID,
			d.DispensedAt.UTC().Format("2006-01-02 15:04:05"),
			d.PatientName,
			d.MedicationName,
			d.Lot,
			d.HealthPostName,
			d.Quantity,
			d.StaffName,
			note,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write export row %d: %w", row, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Debug().Int("rows", len(rows)).Msg("dispensations exported")
	return nil
}
