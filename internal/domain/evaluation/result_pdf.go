package evaluation

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WriteResultPDF renders r as a one-page A4 summary. Hidden scores print
// as a dash.
func WriteResultPDF(w io.Writer, r Result) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "KPI Evaluation Result")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Cycle: %s (%d round %d)", r.Cycle.Name, r.Cycle.Year, r.Cycle.Round)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Evaluator: %d   Evaluatee: %d", r.Assignment.EvaluatorID, r.Assignment.EvaluateeID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", r.Assignment.EvalStatus))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(100, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Weight", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, "Max", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, "Score", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	depth := itemDepths(r.Items)
	for _, item := range r.Items {
		title := strings.Repeat("  ", depth[item.ID]) + item.Title
		score := "-"
		if r.Visible && item.Score != nil {
			score = fmt.Sprintf("%.2f", *item.Score)
		}
		pdf.CellFormat(100, 7, tr(title), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", item.Weight), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", item.MaxScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, score, "1", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	total := "-"
	if r.Visible && r.TotalScore != nil {
		total = fmt.Sprintf("%.2f%%", *r.TotalScore)
	}
	pdf.Cell(0, 8, "Total: "+total)

	return pdf.Output(w)
}

func itemDepths(items []ResultItem) map[int64]int {
	parent := make(map[int64]int64, len(items))
	for _, item := range items {
		if item.ParentID != nil {
			parent[item.ID] = *item.ParentID
		}
	}
	depth := make(map[int64]int, len(items))
	for _, item := range items {
		d := 0
		for id := item.ID; ; d++ {
			p, ok := parent[id]
			if !ok || d > len(items) {
				break
			}
			id = p
		}
		depth[item.ID] = d
	}
	return depth
}
