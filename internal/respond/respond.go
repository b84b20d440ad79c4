// Package respond turns an executed result set into the natural language
// answer shown to the user.
package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/reconquery/reconquery/internal/classify"
	"github.com/reconquery/reconquery/internal/export"
	"github.com/reconquery/reconquery/internal/llm"
	"github.com/reconquery/reconquery/internal/store"
)

// DownloadURLPrefix marks the download link line appended to list answers.
// It appears at most once per answer.
const DownloadURLPrefix = "Download URL: "

const emptyResultAnswer = "No matching records were found for this question."

const exportUnavailableNote = "The export file could not be generated this time; the figures above summarize the result."

// FormattingError wraps oracle failures during answer synthesis. The caller
// falls back to a deterministic rendering of the rows.
type FormattingError struct {
	Err error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("format answer: %v", e.Err)
}

func (e *FormattingError) Unwrap() error { return e.Err }

type Request struct {
	Question string
	Category classify.Category
	Result   store.ResultSet
	// Artifact is nil when no export happened or the export failed.
	Artifact *export.Artifact
	// ExportFailed distinguishes a degraded list answer from a summary one.
	ExportFailed bool
}

type Formatter struct {
	oracle      llm.Client
	summaryRows int
}

func New(oracle llm.Client, summaryRows int) *Formatter {
	if summaryRows <= 0 {
		summaryRows = 50
	}
	return &Formatter{oracle: oracle, summaryRows: summaryRows}
}

// Format produces the final answer text. Empty results short-circuit to a
// fixed sentence without consulting the oracle.
func (f *Formatter) Format(ctx context.Context, req Request) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", &FormattingError{Err: err}
	}
	if req.Result.Empty() {
		return emptyResultAnswer, nil
	}

	reply, err := f.oracle.Complete(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: f.buildPrompt(req)},
	})
	if err != nil {
		return "", &FormattingError{Err: err}
	}
	answer := strings.TrimSpace(reply)
	if answer == "" {
		return "", &FormattingError{Err: fmt.Errorf("oracle returned an empty answer")}
	}

	return decorate(answer, req), nil
}

// General answers are conversational and never pass through the formatter;
// an artifact only belongs to a list answer.
func validateRequest(req Request) error {
	switch req.Category {
	case classify.CategoryRelevant:
		if req.Artifact != nil {
			return fmt.Errorf("artifact supplied for a summary answer")
		}
	case classify.CategoryListRequest:
	default:
		return fmt.Errorf("cannot format category %q", req.Category)
	}
	return nil
}

// FallbackAnswer renders the result without the oracle. It backs the
// degraded path when answer synthesis fails.
func FallbackAnswer(req Request) string {
	if req.Result.Empty() {
		return emptyResultAnswer
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The query returned %d row(s).\n", req.Result.RowCount())
	b.WriteString(renderRows(req.Result, 10))
	return decorate(strings.TrimSpace(b.String()), req)
}

// decorate appends the download link (or the missing-file note) to list
// answers. The link line is added at most once even when the oracle already
// echoed it.
func decorate(answer string, req Request) string {
	if req.Category != classify.CategoryListRequest {
		return answer
	}
	if req.Artifact != nil {
		if strings.Contains(answer, DownloadURLPrefix) {
			return answer
		}
		return answer + "\n\n" + DownloadURLPrefix + req.Artifact.URL
	}
	if req.ExportFailed {
		return answer + "\n\n" + exportUnavailableNote
	}
	return answer
}

const summarySystemPrompt = "You are a financial reconciliation assistant. " +
	"Summarize query results for a business user in a few clear sentences. " +
	"Quote exact figures from the data. Never invent values that are not present."

func (f *Formatter) buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	fmt.Fprintf(&b, "The query returned %d row(s).", req.Result.RowCount())
	if req.Result.RowCount() > f.summaryRows {
		fmt.Fprintf(&b, " The first %d are shown below.", f.summaryRows)
	}
	b.WriteString("\n\n")
	b.WriteString(renderRows(req.Result, f.summaryRows))
	b.WriteString("\nAnswer the question using only this data.")
	return b.String()
}

// renderRows prints up to limit rows as pipe-separated lines with a header.
func renderRows(result store.ResultSet, limit int) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")
	for i, row := range result.Rows {
		if i >= limit {
			break
		}
		cells := make([]string, len(row))
		for j, value := range row {
			cells[j] = fmt.Sprintf("%v", value)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}
