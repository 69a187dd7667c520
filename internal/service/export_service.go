package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/repository"
)

// ── Export module business errors ──

var (
	ErrExportNoProgress   = errors.New("no progress recorded yet")
	ErrExportGenerateFail = errors.New("failed to generate spreadsheet")
)

// ExportService spreadsheet exports for coordinators.
//
// Notes:
//   - reads cached progress only; run a recalculation first for guaranteed figures
//   - the workbook is returned as a bytes.Buffer; the handler sets the HTTP headers
//   - one row per student, one "done/total" column per phase in workbook order
type ExportService interface {
	ExportProgress(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	phases *phase.Map
	logger *zap.Logger
}

// NewExportService creates an ExportService.
func NewExportService(repo *repository.Repository, phases *phase.Map, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, phases: phases, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportProgress: cohort progress as .xlsx
// ═══════════════════════════════════════════════════════════
//
// Layout:
//   - row 1: title
//   - row 2: Student | <phase title>... | Forms | Overall % | Complete
//   - rows 3..: one per student, ordered by student id
//
// Returns buf (xlsx bytes), filename, error.

func (s *exportService) ExportProgress(ctx context.Context) (*bytes.Buffer, string, error) {
	// 1. overall rows define the cohort
	overalls, err := s.repo.Progress.ListOverall(ctx)
	if err != nil {
		s.logger.Error("export: list overall progress failed", zap.Error(err))
		return nil, "", err
	}
	if len(overalls) == 0 {
		return nil, "", ErrExportNoProgress
	}

	// 2. per-phase rows per student
	phaseRows := make(map[string]map[string]model.PhaseProgress, len(overalls))
	for _, o := range overalls {
		rows, err := s.repo.Progress.ListPhases(ctx, o.StudentID)
		if err != nil {
			s.logger.Error("export: list phase progress failed", zap.String("student_id", o.StudentID), zap.Error(err))
			return nil, "", err
		}
		byName := make(map[string]model.PhaseProgress, len(rows))
		for _, r := range rows {
			byName[r.PhaseName] = r
		}
		phaseRows[o.StudentID] = byName
	}

	// 3. build the workbook
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Progress"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	defs := s.phases.Phases()
	lastCol := colName(len(defs) + 3)

	f.SetColWidth(sheetName, "A", "A", 18)
	f.SetColWidth(sheetName, colName(1), lastCol, 16)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// title
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Workbook progress, %s", time.Now().UTC().Format("2006-01-02")))
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// header
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "Student")
	for i, def := range defs {
		title := def.Title
		if title == "" {
			title = def.Name
		}
		f.SetCellValue(sheetName, cell(colName(1+i), row), title)
	}
	f.SetCellValue(sheetName, cell(colName(len(defs)+1), row), "Forms")
	f.SetCellValue(sheetName, cell(colName(len(defs)+2), row), "Overall %")
	f.SetCellValue(sheetName, cell(colName(len(defs)+3), row), "Complete")
	f.SetCellStyle(sheetName, cell("A", row), cell(lastCol, row), headerStyle)

	// data
	row = 3
	for _, o := range overalls {
		f.SetCellValue(sheetName, cell("A", row), o.StudentID)
		for i, def := range defs {
			text := fmt.Sprintf("0/%d", def.TotalItems)
			if pr, ok := phaseRows[o.StudentID][def.Name]; ok {
				text = fmt.Sprintf("%d/%d", pr.CompletedItems, pr.TotalItems)
			}
			f.SetCellValue(sheetName, cell(colName(1+i), row), text)
		}
		f.SetCellValue(sheetName, cell(colName(len(defs)+1), row), fmt.Sprintf("%d/%d", o.CompletedForms, o.TotalForms))
		f.SetCellValue(sheetName, cell(colName(len(defs)+2), row), o.OverallPercentage)
		f.SetCellValue(sheetName, cell(colName(len(defs)+3), row), yesNo(o.IsComplete))
		row++
	}

	// 4. write out
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("export: write xlsx failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("workbook_progress_%s.xlsx", time.Now().UTC().Format("20060102"))
	return buf, filename, nil
}

// colName maps a 0-based offset from column A to its letter name.
func colName(offset int) string {
	name, _ := excelize.ColumnNumberToName(offset + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
