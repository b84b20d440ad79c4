// Package pipeline chains classification, SQL generation, execution, export
// and answer formatting into one request flow. Stage failures degrade to a
// best-effort answer instead of surfacing as request errors; the only hard
// failure is an empty question.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reconquery/reconquery/internal/classify"
	"github.com/reconquery/reconquery/internal/export"
	"github.com/reconquery/reconquery/internal/llm"
	"github.com/reconquery/reconquery/internal/observability"
	"github.com/reconquery/reconquery/internal/respond"
	"github.com/reconquery/reconquery/internal/sqlgen"
	"github.com/reconquery/reconquery/internal/store"
)

const (
	stageClassify = "classify"
	stageGenerate = "generate"
	stageExecute  = "execute"
	stageExport   = "export"
	stageFormat   = "format"
)

const (
	generationFailedAnswer = "I could not turn that question into a query against the reconciliation data. Try rephrasing it, for example by naming the table or the time range you care about."
	executionFailedAnswer  = "The query for that question failed to run. Try narrowing it down, for example to a shorter time range."
)

type Classifier interface {
	Classify(ctx context.Context, req classify.Request) (classify.Outcome, error)
}

type Generator interface {
	Generate(ctx context.Context, req sqlgen.Request) (sqlgen.Query, error)
}

type Exporter interface {
	Export(ctx context.Context, result store.ResultSet) (export.Artifact, error)
}

type Formatter interface {
	Format(ctx context.Context, req respond.Request) (string, error)
}

type Request struct {
	Question string
	History  []llm.Turn
	UserName string
}

// Response is always a usable answer. Degraded marks answers produced after
// a stage failure.
type Response struct {
	Answer      string
	Category    classify.Category
	SQL         string
	RowCount    int
	ArtifactURL string
	Degraded    bool
}

type Pipeline struct {
	classifier   Classifier
	generator    Generator
	engine       store.Engine
	exporter     Exporter
	formatter    Formatter
	logger       *slog.Logger
	stageTimeout time.Duration
}

func New(classifier Classifier, generator Generator, engine store.Engine, exporter Exporter, formatter Formatter, logger *slog.Logger, stageTimeout time.Duration) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:   classifier,
		generator:    generator,
		engine:       engine,
		exporter:     exporter,
		formatter:    formatter,
		logger:       logger,
		stageTimeout: stageTimeout,
	}
}

// Run answers one question. It returns an error only for an empty question;
// every downstream failure degrades into a Response instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Response{}, fmt.Errorf("question is required")
	}

	outcome := p.classify(ctx, req)
	observability.CountQuestion(string(outcome.Category))

	if outcome.Category == classify.CategoryGeneral {
		return Response{Answer: outcome.Reply, Category: outcome.Category}, nil
	}

	query, err := p.generate(ctx, req, outcome.Category)
	if err != nil {
		return Response{
			Answer:   generationFailedAnswer,
			Category: outcome.Category,
			Degraded: true,
		}, nil
	}

	// The failed statement goes to the logs only; degraded answers never
	// carry generated SQL back to the caller.
	result, err := p.execute(ctx, query)
	if err != nil {
		return Response{
			Answer:   executionFailedAnswer,
			Category: outcome.Category,
			Degraded: true,
		}, nil
	}

	artifact, exportFailed := p.export(ctx, outcome.Category, result)

	formatReq := respond.Request{
		Question:     req.Question,
		Category:     outcome.Category,
		Result:       result,
		Artifact:     artifact,
		ExportFailed: exportFailed,
	}
	answer, degradedFormat := p.format(ctx, formatReq)

	response := Response{
		Answer:   answer,
		Category: outcome.Category,
		SQL:      query.SQL,
		RowCount: result.RowCount(),
		Degraded: exportFailed || degradedFormat,
	}
	if artifact != nil {
		response.ArtifactURL = artifact.URL
	}
	return response, nil
}

// classify never fails the request: an unusable verdict becomes a general
// answer so the user still gets a reply.
func (p *Pipeline) classify(ctx context.Context, req Request) classify.Outcome {
	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	outcome, err := p.classifier.Classify(stageCtx, classify.Request{
		Question: req.Question,
		History:  req.History,
		UserName: req.UserName,
	})
	if err != nil {
		observability.CountStageFailure(stageClassify)
		p.logger.WarnContext(ctx, "classification failed, treating question as general",
			slog.String("error", err.Error()))
		return classify.Outcome{
			Category: classify.CategoryGeneral,
			Reply:    classify.GeneralGreeting(req.UserName, req.History),
		}
	}
	return outcome
}

func (p *Pipeline) generate(ctx context.Context, req Request, category classify.Category) (sqlgen.Query, error) {
	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	query, err := p.generator.Generate(stageCtx, sqlgen.Request{
		Question: req.Question,
		History:  req.History,
		Category: category,
	})
	if err != nil {
		observability.CountStageFailure(stageGenerate)
		p.logger.WarnContext(ctx, "sql generation failed",
			slog.String("error", err.Error()))
		return sqlgen.Query{}, err
	}
	return query, nil
}

func (p *Pipeline) execute(ctx context.Context, query sqlgen.Query) (store.ResultSet, error) {
	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	result, err := p.engine.Execute(stageCtx, query.SQL)
	if err != nil {
		observability.CountStageFailure(stageExecute)
		p.logger.WarnContext(ctx, "query execution failed",
			slog.String("sql", query.SQL),
			slog.String("error", err.Error()))
		return store.ResultSet{}, err
	}
	observability.ObserveQueryExecution(result.Duration)
	return result, nil
}

// export runs only for non-empty list results. A failed upload degrades the
// answer rather than failing the request.
func (p *Pipeline) export(ctx context.Context, category classify.Category, result store.ResultSet) (*export.Artifact, bool) {
	if category != classify.CategoryListRequest || result.Empty() {
		return nil, false
	}

	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	artifact, err := p.exporter.Export(stageCtx, result)
	if err != nil {
		observability.CountStageFailure(stageExport)
		p.logger.WarnContext(ctx, "result export failed, answering without download link",
			slog.String("error", err.Error()))
		return nil, true
	}
	observability.CountExport(string(artifact.Format), artifact.RowCount)
	return &artifact, false
}

func (p *Pipeline) format(ctx context.Context, req respond.Request) (string, bool) {
	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	answer, err := p.formatter.Format(stageCtx, req)
	if err != nil {
		observability.CountStageFailure(stageFormat)
		p.logger.WarnContext(ctx, "answer formatting failed, using fallback rendering",
			slog.String("error", err.Error()))
		return respond.FallbackAnswer(req), true
	}
	return answer, false
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.stageTimeout)
}
