// Package report renders a batch run into a markdown summary and its HTML
// form for the results API.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
	"gaitlab/internal/pipeline"
)

// Generator builds batch reports from a run result and the metric table.
type Generator struct{}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Markdown renders the batch summary as a markdown document.
func (g *Generator) Markdown(result *pipeline.Result, table *metrics.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Batch %s\n\n", result.BatchID)
	fmt.Fprintf(&b, "Run %s, duration %s.\n\n",
		result.StartedAt.Time().Format("2006-01-02 15:04:05"),
		result.FinishedAt.Time().Sub(result.StartedAt.Time()).Round(time.Millisecond))

	b.WriteString("## Cohort\n\n")
	fmt.Fprintf(&b, "- Subjects read: %d\n", result.SubjectsRead)
	fmt.Fprintf(&b, "- Subjects retained: %d\n", result.SubjectsRetained)
	fmt.Fprintf(&b, "- Fragment files normalized: %d\n", result.FilesRead)
	fmt.Fprintf(&b, "- Fragment files skipped: %d\n", len(result.FilesSkipped))
	fmt.Fprintf(&b, "- Strides flagged as anomalous: %d\n\n", result.StridesFlagged)

	if len(result.SpliceWarnings) > 0 {
		b.WriteString("## Splice warnings\n\n")
		for _, w := range result.SpliceWarnings {
			fmt.Fprintf(&b, "- %s\n", w.String())
		}
		b.WriteString("\n")
	}

	if len(result.FilesSkipped) > 0 {
		b.WriteString("## Skipped files\n\n")
		for _, s := range result.FilesSkipped {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", s.SubjectID, s.File, s.Reason)
		}
		b.WriteString("\n")
	}

	g.writeMetricSection(&b, table)
	g.writeModelSection(&b, result.Models, result.ModelSkips)

	return b.String()
}

// HTML renders the markdown report to HTML.
func (g *Generator) HTML(result *pipeline.Result, table *metrics.Table) []byte {
	md := []byte(g.Markdown(result, table))
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(md, p, renderer)
}

func (g *Generator) writeMetricSection(b *strings.Builder, table *metrics.Table) {
	records := table.Records()
	if len(records) == 0 {
		return
	}
	b.WriteString("## Metrics\n\n")
	b.WriteString("| Subject | Trial | Condition | Metric | Value | Strides |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range records {
		value := "missing"
		if !r.Missing {
			value = fmt.Sprintf("%.4f", r.Value)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %d |\n",
			r.Key.SubjectID, r.Key.TrialType, r.Key.Condition, r.Key.Metric, value, r.StridesUsed)
	}
	b.WriteString("\n")
}

func (g *Generator) writeModelSection(b *strings.Builder, models []*model.Result, skips []string) {
	if len(models) == 0 && len(skips) == 0 {
		return
	}
	b.WriteString("## Models\n\n")
	for _, m := range models {
		switch m.Kind {
		case model.KindRegression:
			fmt.Fprintf(b, "### Regression: %s on %s (%s)\n\n", m.Outcome, m.TrialType, m.Condition)
			fmt.Fprintf(b, "n=%d, R²=%.4f, adj. R²=%.4f\n\n", m.SampleSize, m.RSquared, m.AdjRSquared)
			b.WriteString("| Term | Estimate | Std. error | t | p |\n")
			b.WriteString("|---|---|---|---|---|\n")
			writeCoefficient(b, m.Intercept)
			for _, c := range m.Coefficients {
				writeCoefficient(b, c)
			}
			b.WriteString("\n")
		case model.KindClassification:
			fmt.Fprintf(b, "### Classifier: %s >= %.2f on %s (%s)\n\n", m.Outcome, m.Threshold, m.TrialType, m.Condition)
			fmt.Fprintf(b, "n=%d, accuracy=%.4f, AUC=%.4f\n\n", m.SampleSize, m.Accuracy, m.AUC)
			if m.Confusion != nil {
				fmt.Fprintf(b, "Confusion: TP=%d TN=%d FP=%d FN=%d\n\n",
					m.Confusion.TruePositive, m.Confusion.TrueNegative,
					m.Confusion.FalsePositive, m.Confusion.FalseNegative)
			}
		}
	}
	for _, s := range skips {
		fmt.Fprintf(b, "- skipped: %s\n", s)
	}
	if len(skips) > 0 {
		b.WriteString("\n")
	}
}

func writeCoefficient(b *strings.Builder, c model.Coefficient) {
	fmt.Fprintf(b, "| %s | %.4f | %.4f | %.2f | %.4f |\n",
		c.Name, c.Estimate, c.StdErr, c.TValue, c.PValue)
}
