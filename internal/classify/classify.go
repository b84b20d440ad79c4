// Package classify assigns each incoming question one of three categories:
// relevant (answerable via SQL), list request (answerable via SQL, implying a
// bulk export), or general (no SQL involved). Classification is backed by the
// generative oracle, so identical questions tend to, but are not guaranteed
// to, classify identically.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reconquery/reconquery/internal/llm"
	"github.com/reconquery/reconquery/internal/schema"
)

type Category string

const (
	CategoryRelevant    Category = "relevant"
	CategoryListRequest Category = "list_request"
	CategoryGeneral     Category = "general"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRelevant, CategoryListRequest, CategoryGeneral:
		return true
	default:
		return false
	}
}

// ClassificationError reports that the oracle call failed or produced a
// verdict that could not be interpreted. Callers fall back to
// CategoryGeneral rather than surfacing it to the user.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify question: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

type Request struct {
	Question string
	History  []llm.Turn
	UserName string
}

// Outcome is the classifier's verdict. Reply is only populated for
// CategoryGeneral and carries the conversational answer.
type Outcome struct {
	Category  Category
	Reply     string
	Reasoning string
}

type Classifier struct {
	oracle llm.Client
	desc   schema.Descriptor
	// listKeywords bias the verdict toward a list request. The threshold
	// between "relevant" and "list request" is policy, not a hard rule; the
	// keywords are surfaced to the oracle as hints.
	listKeywords []string
}

func New(oracle llm.Client, desc schema.Descriptor, listKeywords []string) *Classifier {
	return &Classifier{oracle: oracle, desc: desc, listKeywords: listKeywords}
}

type verdict struct {
	Category  string `json:"category"`
	Reply     string `json:"reply"`
	Reasoning string `json:"reasoning"`
}

func (c *Classifier) Classify(ctx context.Context, req Request) (Outcome, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Outcome{}, &ClassificationError{Err: fmt.Errorf("question is required")}
	}

	raw, err := c.oracle.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You classify questions for a financial data assistant. Respond with a single JSON object and nothing else."},
		{Role: "user", Content: c.buildPrompt(req)},
	})
	if err != nil {
		return Outcome{}, &ClassificationError{Err: err}
	}

	var v verdict
	if err := json.Unmarshal([]byte(llm.StripFence(raw)), &v); err != nil {
		return Outcome{}, &ClassificationError{Err: fmt.Errorf("decode verdict: %w", err)}
	}

	category := Category(strings.ToLower(strings.TrimSpace(v.Category)))
	if !category.Valid() {
		return Outcome{}, &ClassificationError{Err: fmt.Errorf("unrecognized category %q", v.Category)}
	}

	outcome := Outcome{Category: category, Reasoning: v.Reasoning}
	if category == CategoryGeneral {
		outcome.Reply = strings.TrimSpace(v.Reply)
		if outcome.Reply == "" {
			outcome.Reply = GeneralGreeting(req.UserName, req.History)
		}
	}
	return outcome, nil
}

func (c *Classifier) buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Classify the user's question into exactly one category:\n")
	b.WriteString(`- "relevant": a question about the financial data below, answerable with a SQL query (totals, sums, comparisons, lookups, summaries).` + "\n")
	b.WriteString(`- "list_request": a question asking for a bulk list of records, suitable for a downloadable export.` + "\n")
	b.WriteString(`- "general": greetings and anything unrelated to the data.` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Questions mentioning tables, columns, amounts, statuses, references, or time ranges over the data are never general.\n")
	b.WriteString("- Follow-ups to previous data questions in the history are relevant.\n")
	b.WriteString("- Summary or aggregate requests are relevant, not list requests.\n")
	if len(c.listKeywords) > 0 {
		fmt.Fprintf(&b, "- Phrases like %s suggest a list request.\n", strings.Join(c.listKeywords, ", "))
	}
	b.WriteString("\nAvailable schema:\n")
	b.WriteString(c.desc.Render())
	b.WriteString("\nPrevious conversation:\n")
	b.WriteString(llm.FormatHistory(req.History))
	fmt.Fprintf(&b, "\nQuestion: %q\n\n", req.Question)
	b.WriteString(`Respond with JSON: {"category": "...", "reply": "...", "reasoning": "..."}.` + "\n")
	b.WriteString(`Populate "reply" only for general questions, with a short conversational answer.`)
	return b.String()
}

// GeneralGreeting builds the fallback conversational reply used when the
// oracle gives none, or when classification itself failed.
func GeneralGreeting(userName string, history []llm.Turn) string {
	name := ""
	if strings.TrimSpace(userName) != "" {
		name = ", " + strings.TrimSpace(userName)
	}
	if last, ok := llm.LastTurn(history); ok {
		return fmt.Sprintf("Hi%s! Last time you asked about %q. How can I help you with your financial data today?", name, last.Question)
	}
	return fmt.Sprintf("Hi%s! I can answer questions about your financial transaction data. What would you like to know?", name)
}
