package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/dto"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/pkg/export"
)

type attendanceSheetReader interface {
	ListAttendance(ctx context.Context, classID, rawDate string) (*models.AttendanceSummary, error)
}

type gradeSheetReader interface {
	ClassGradeSheet(ctx context.Context, classID, periodID string) (*models.GradeSheet, error)
}

// ExportService renders attendance and grade sheets through the CSV and PDF exporters.
type ExportService struct {
	attendance attendanceSheetReader
	grades     gradeSheetReader
	renderers  map[dto.ExportFormat]export.Renderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(attendance attendanceSheetReader, grades gradeSheetReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		grades:     grades,
		renderers: map[dto.ExportFormat]export.Renderer{
			dto.ExportFormatCSV: export.NewCSVExporter(),
			dto.ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// ExportAttendanceSheet renders the attendance of a class for one date.
func (s *ExportService) ExportAttendanceSheet(ctx context.Context, classID, date string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	sheet, err := s.attendance.ListAttendance(ctx, classID, date)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Title:   fmt.Sprintf("Attendance %s - %s", sheet.ClassID, sheet.Date),
		Headers: []string{"Student", "Status", "Notes", "Recorded By"},
		Summary: []string{
			fmt.Sprintf("Present: %d", sheet.Counts.Present),
			fmt.Sprintf("Absent: %d", sheet.Counts.Absent),
			fmt.Sprintf("Late: %d", sheet.Counts.Late),
			fmt.Sprintf("Excused: %d", sheet.Counts.Excused),
			fmt.Sprintf("Total: %d", sheet.Counts.Total),
		},
	}
	for _, rec := range sheet.Records {
		data.Rows = append(data.Rows, []string{rec.StudentID, string(rec.Status), deref(rec.Notes), deref(rec.RecordedBy)})
	}
	return s.render(renderer, data, fmt.Sprintf("attendance_%s_%s", sheet.ClassID, sheet.Date))
}

// ExportGradeSheet renders the grades of a class for one period.
func (s *ExportService) ExportGradeSheet(ctx context.Context, classID, periodID string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	sheet, err := s.grades.ClassGradeSheet(ctx, classID, periodID)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Title:   fmt.Sprintf("Grades %s - %s", sheet.ClassID, sheet.AcademicPeriodID),
		Headers: []string{"Student", "Type", "Score", "Max", "Percentage", "Letter", "Comments"},
		Summary: []string{
			fmt.Sprintf("Grades: %d", sheet.Stats.Count),
			fmt.Sprintf("Average: %s%%", formatScore(sheet.Stats.AveragePercentage)),
			fmt.Sprintf("Passing: %d", sheet.Stats.Passing),
		},
	}
	for _, g := range sheet.Grades {
		data.Rows = append(data.Rows, []string{
			g.StudentID, g.GradeType, formatScore(g.Score), formatScore(g.MaxScore),
			formatScore(g.Percentage), g.LetterGrade, deref(g.Comments),
		})
	}
	return s.render(renderer, data, fmt.Sprintf("grades_%s_%s", sheet.ClassID, sheet.AcademicPeriodID))
}

func (s *ExportService) renderer(format dto.ExportFormat) (export.Renderer, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	renderer, ok := s.renderers[dto.ExportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, validationError("unsupported export format", []models.ReferenceIssue{{
			Index: -1, Field: "format", Reason: models.IssueInvalid, Detail: fmt.Sprintf("format %q is not csv or pdf", format),
		}})
	}
	return renderer, nil
}

func (s *ExportService) render(renderer export.Renderer, data export.Dataset, name string) (*dto.ExportedFile, error) {
	body, err := renderer.Render(data)
	if err != nil {
		s.logger.Error("render export", zap.String("file", name), zap.Error(err))
		return nil, err
	}
	return &dto.ExportedFile{
		Filename:    name + "." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Data:        body,
	}, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
