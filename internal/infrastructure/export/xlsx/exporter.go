// Package xlsx renders pipeline results as spreadsheet workbooks.
package xlsx

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

const (
	sheetSummary         = "Summary"
	sheetPredictions     = "Predictions"
	sheetFindings        = "Findings"
	sheetRecommendations = "Recommendations"
)

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *Exporter) Export(result *domain.PipelineResult) ([]byte, error) {
	if result == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export xlsx", fmt.Errorf("result is nil"))
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, sheet := range []string{sheetPredictions, sheetFindings, sheetRecommendations} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create %s sheet: %w", sheet, err)
		}
	}

	writers := []func(*excelize.File, *domain.PipelineResult) error{
		writeSummary,
		writePredictions,
		writeFindings,
		writeRecommendations,
	}
	for _, write := range writers {
		if err := write(f, result); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(sheetSummary, "A", "A", 20)
	_ = f.SetColWidth(sheetSummary, "B", "B", 80)
	_ = f.SetColWidth(sheetFindings, "B", "B", 60)
	_ = f.SetColWidth(sheetRecommendations, "B", "B", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, r *domain.PipelineResult) error {
	severity := ""
	summary := r.Analysis.Error
	if !r.Analysis.Failed() {
		severity = string(r.Analysis.Severity)
		summary = r.Analysis.Summary
	}
	degraded := make([]string, 0, len(r.DegradedStages))
	for _, stage := range r.DegradedStages {
		degraded = append(degraded, string(stage))
	}
	return writeRows(f, sheetSummary, [][]any{
		{"Field", "Value"},
		{"Report ID", r.ReportID},
		{"Status", string(r.Status)},
		{"Pages", r.PageCount},
		{"Low quality text", r.LowQualityText},
		{"Severity", severity},
		{"Summary", summary},
		{"Recommendation model", r.Recommendations.ModelUsed},
		{"Degraded stages", strings.Join(degraded, ", ")},
	})
}

func writePredictions(f *excelize.File, r *domain.PipelineResult) error {
	rows := [][]any{{"Disease", "Confidence", "Severity"}}
	for _, p := range r.Predictions {
		rows = append(rows, []any{p.Disease.String(), p.Confidence, string(p.Severity)})
	}
	return writeRows(f, sheetPredictions, rows)
}

func writeFindings(f *excelize.File, r *domain.PipelineResult) error {
	rows := [][]any{{"Kind", "Value", "Detail"}}
	if !r.Analysis.Failed() {
		a := r.Analysis.AnalysisResult
		for _, e := range a.Entities {
			rows = append(rows, []any{"entity", e.Text, e.Type})
		}
		for _, finding := range a.KeyFindings {
			rows = append(rows, []any{"key_finding", finding, ""})
		}
		for _, test := range a.RecommendedTests {
			rows = append(rows, []any{"recommended_test", test, ""})
		}
		for _, med := range a.Medications {
			rows = append(rows, []any{"medication", med, ""})
		}
		for _, m := range a.Measurements {
			rows = append(rows, []any{"measurement", m.RawText, m.Type})
		}
	}
	return writeRows(f, sheetFindings, rows)
}

func writeRecommendations(f *excelize.File, r *domain.PipelineResult) error {
	rows := [][]any{{"Category", "Recommendation"}}
	for _, group := range r.Recommendations.Categories {
		for _, item := range group.Items {
			rows = append(rows, []any{string(group.Category), item})
		}
	}
	return writeRows(f, sheetRecommendations, rows)
}
