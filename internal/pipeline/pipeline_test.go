package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/reconquery/reconquery/internal/classify"
	"github.com/reconquery/reconquery/internal/export"
	"github.com/reconquery/reconquery/internal/respond"
	"github.com/reconquery/reconquery/internal/schema"
	"github.com/reconquery/reconquery/internal/sqlgen"
	"github.com/reconquery/reconquery/internal/store"
)

func newTestPipeline(deps testDeps) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(deps.classifier, deps.generator, deps.engine, deps.exporter, deps.formatter, logger, time.Second)
}

type testDeps struct {
	classifier *fakeClassifier
	generator  *fakeGenerator
	engine     *fakeEngine
	exporter   *fakeExporter
	formatter  *fakeFormatter
}

func defaultDeps() testDeps {
	return testDeps{
		classifier: &fakeClassifier{outcome: classify.Outcome{Category: classify.CategoryRelevant}},
		generator:  &fakeGenerator{query: sqlgen.Query{SQL: "SELECT count(*) FROM payment_transactions"}},
		engine: &fakeEngine{result: store.ResultSet{
			Columns: []string{"count"},
			Rows:    [][]any{{int64(42)}},
		}},
		exporter:  &fakeExporter{artifact: export.Artifact{URL: "https://files.example.com/x.csv", Format: export.FormatCSV, RowCount: 1}},
		formatter: &fakeFormatter{answer: "There are 42 transactions."},
	}
}

func TestRunSummaryQuestion(t *testing.T) {
	deps := defaultDeps()
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "how many transactions?"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Answer != "There are 42 transactions." {
		t.Fatalf("Answer = %q", resp.Answer)
	}
	if resp.Category != classify.CategoryRelevant {
		t.Fatalf("Category = %q", resp.Category)
	}
	if resp.RowCount != 1 {
		t.Fatalf("RowCount = %d", resp.RowCount)
	}
	if resp.ArtifactURL != "" {
		t.Fatalf("summary answer must not export, got URL %q", resp.ArtifactURL)
	}
	if deps.exporter.calls != 0 {
		t.Fatalf("exporter calls = %d, want 0", deps.exporter.calls)
	}
	if resp.Degraded {
		t.Fatal("unexpected degraded response")
	}
}

func TestRunListQuestionExports(t *testing.T) {
	deps := defaultDeps()
	deps.classifier.outcome = classify.Outcome{Category: classify.CategoryListRequest}
	listResult := store.ResultSet{Columns: []string{"reference", "amount"}}
	for i := 0; i < 500; i++ {
		listResult.Rows = append(listResult.Rows, []any{fmt.Sprintf("TXN-%03d", i), int64(i)})
	}
	deps.engine.result = listResult
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "list all failed payments"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.ArtifactURL != "https://files.example.com/x.csv" {
		t.Fatalf("ArtifactURL = %q", resp.ArtifactURL)
	}
	if resp.RowCount != 500 {
		t.Fatalf("RowCount = %d", resp.RowCount)
	}
	if deps.exporter.calls != 1 {
		t.Fatalf("exporter calls = %d", deps.exporter.calls)
	}
	if deps.formatter.lastRequest.Artifact == nil {
		t.Fatal("formatter did not receive the artifact")
	}
}

func TestRunGeneralQuestionSkipsSQL(t *testing.T) {
	deps := defaultDeps()
	deps.classifier.outcome = classify.Outcome{
		Category: classify.CategoryGeneral,
		Reply:    "Hello! Ask me about your reconciliation data.",
	}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "hi there"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Answer != "Hello! Ask me about your reconciliation data." {
		t.Fatalf("Answer = %q", resp.Answer)
	}
	if resp.SQL != "" {
		t.Fatalf("general answer produced SQL %q", resp.SQL)
	}
	if deps.generator.calls != 0 || deps.engine.calls != 0 {
		t.Fatalf("generator/engine calls = %d/%d, want 0/0", deps.generator.calls, deps.engine.calls)
	}
}

func TestRunClassificationFailureFallsBackToGreeting(t *testing.T) {
	deps := defaultDeps()
	deps.classifier.err = &classify.ClassificationError{Err: errors.New("oracle down")}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "how many transactions?", UserName: "Dana"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Category != classify.CategoryGeneral {
		t.Fatalf("Category = %q", resp.Category)
	}
	if !strings.Contains(resp.Answer, "Dana") {
		t.Fatalf("greeting should address the user: %q", resp.Answer)
	}
	if deps.generator.calls != 0 {
		t.Fatalf("generator calls = %d, want 0", deps.generator.calls)
	}
}

func TestRunGenerationFailureDegrades(t *testing.T) {
	deps := defaultDeps()
	deps.generator.err = &sqlgen.GenerationError{Err: errors.New("empty sql")}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "how many transactions?"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response")
	}
	if !strings.Contains(resp.Answer, "rephrasing") {
		t.Fatalf("Answer = %q", resp.Answer)
	}
	if deps.engine.calls != 0 {
		t.Fatalf("engine calls = %d, want 0", deps.engine.calls)
	}
}

func TestRunExecutionFailureDegradesWithoutSQL(t *testing.T) {
	deps := defaultDeps()
	deps.generator.query = sqlgen.Query{SQL: "SELECT secret_col FROM payment_transactions"}
	deps.engine.err = &store.ExecutionError{Err: errors.New("syntax error")}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "how many transactions?"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response")
	}
	if resp.SQL != "" {
		t.Fatalf("degraded execution response leaked SQL %q", resp.SQL)
	}
	if strings.Contains(resp.Answer, "SELECT") {
		t.Fatalf("degraded answer leaked SQL: %q", resp.Answer)
	}
	if deps.formatter.calls != 0 {
		t.Fatalf("formatter calls = %d, want 0", deps.formatter.calls)
	}
}

func TestRunExportFailureAnswersWithoutLink(t *testing.T) {
	deps := defaultDeps()
	deps.classifier.outcome = classify.Outcome{Category: classify.CategoryListRequest}
	deps.exporter.err = &export.StorageError{Err: errors.New("bucket unavailable")}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "list all failed payments"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.ArtifactURL != "" {
		t.Fatalf("ArtifactURL = %q, want empty", resp.ArtifactURL)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response")
	}
	if !deps.formatter.lastRequest.ExportFailed {
		t.Fatal("formatter was not told the export failed")
	}
}

func TestRunEmptyListResultSkipsExport(t *testing.T) {
	deps := defaultDeps()
	deps.classifier.outcome = classify.Outcome{Category: classify.CategoryListRequest}
	deps.engine.result = store.ResultSet{Columns: []string{"reference"}}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "list all failed payments"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deps.exporter.calls != 0 {
		t.Fatalf("exporter calls = %d, want 0", deps.exporter.calls)
	}
	if resp.RowCount != 0 {
		t.Fatalf("RowCount = %d", resp.RowCount)
	}
}

func TestRunFormatterFailureUsesFallback(t *testing.T) {
	deps := defaultDeps()
	deps.formatter.err = &respond.FormattingError{Err: errors.New("oracle down")}
	p := newTestPipeline(deps)

	resp, err := p.Run(context.Background(), Request{Question: "how many transactions?"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response")
	}
	if !strings.Contains(resp.Answer, "1 row(s)") {
		t.Fatalf("fallback answer = %q", resp.Answer)
	}
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	p := newTestPipeline(defaultDeps())
	if _, err := p.Run(context.Background(), Request{Question: "   "}); err == nil {
		t.Fatal("expected error for empty question")
	}
}

type fakeClassifier struct {
	outcome classify.Outcome
	err     error
	calls   int
}

func (f *fakeClassifier) Classify(_ context.Context, _ classify.Request) (classify.Outcome, error) {
	f.calls++
	if f.err != nil {
		return classify.Outcome{}, f.err
	}
	return f.outcome, nil
}

type fakeGenerator struct {
	query sqlgen.Query
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, req sqlgen.Request) (sqlgen.Query, error) {
	f.calls++
	if f.err != nil {
		return sqlgen.Query{}, f.err
	}
	query := f.query
	query.Category = req.Category
	return query, nil
}

type fakeEngine struct {
	result store.ResultSet
	err    error
	calls  int
}

func (f *fakeEngine) Execute(_ context.Context, _ string) (store.ResultSet, error) {
	f.calls++
	if f.err != nil {
		return store.ResultSet{}, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) Introspect(_ context.Context) (schema.Descriptor, error) {
	return schema.Descriptor{}, nil
}

func (f *fakeEngine) HealthCheck(_ context.Context) error { return nil }

func (f *fakeEngine) Close() error { return nil }

type fakeExporter struct {
	artifact export.Artifact
	err      error
	calls    int
}

func (f *fakeExporter) Export(_ context.Context, _ store.ResultSet) (export.Artifact, error) {
	f.calls++
	if f.err != nil {
		return export.Artifact{}, f.err
	}
	return f.artifact, nil
}

type fakeFormatter struct {
	answer      string
	err         error
	calls       int
	lastRequest respond.Request
}

func (f *fakeFormatter) Format(_ context.Context, req respond.Request) (string, error) {
	f.calls++
	f.lastRequest = req
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
