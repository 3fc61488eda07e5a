// Package relay runs the per-message pipeline: clean the query, search the
// document root, assemble file context, build the prompt, generate an answer
// and post it back to Teams. One background goroutine per inbound message;
// nothing here ever propagates an error past the pipeline — every failure
// turns into a user-facing fallback string.
package relay

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hotaket/ollamabridge/internal/assemble"
	"github.com/hotaket/ollamabridge/internal/config"
	"github.com/hotaket/ollamabridge/internal/extract"
	"github.com/hotaket/ollamabridge/internal/notify"
	"github.com/hotaket/ollamabridge/internal/ollama"
	"github.com/hotaket/ollamabridge/internal/prompt"
	"github.com/hotaket/ollamabridge/internal/query"
	"github.com/hotaket/ollamabridge/internal/search"
)

// rawSectionBudget caps the combined answer + raw-search-result appendix;
// when exceeded, the appendix alone is cut to rawSectionMax.
const (
	rawSectionBudget = 8000
	rawSectionMax    = 4000
)

var tracer = otel.Tracer("github.com/hotaket/ollamabridge/internal/relay")

// Generator is the model client used by the pipeline.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sender delivers the final answer to the chat.
type Sender interface {
	Send(ctx context.Context, query, answer, searchPath string) notify.Result
}

// Processor executes the relay pipeline for inbound messages.
type Processor struct {
	trigger   string
	searchCfg config.SearchConfig
	searcher  *search.Searcher // nil when search is disabled
	extractor *extract.Service
	generator Generator
	sender    Sender // nil when no workflow webhook is configured
}

// New wires a processor. searcher and sender may be nil (feature disabled).
func New(cfg *config.Config, searcher *search.Searcher, extractor *extract.Service, gen Generator, sender Sender) *Processor {
	return &Processor{
		trigger:   cfg.Trigger,
		searchCfg: cfg.Search,
		searcher:  searcher,
		extractor: extractor,
		generator: gen,
		sender:    sender,
	}
}

// Process handles one inbound message to completion. Meant to be called as a
// goroutine; a catch-all recover logs the stack and ends silently so a bad
// message can never take the server down.
func (p *Processor) Process(runID, rawText string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("relay.panic", "run", runID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	ctx, span := tracer.Start(context.Background(), "relay.process",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	cleaned := query.Clean(rawText, p.trigger)
	cls := prompt.Classify(cleaned)

	slog.Info("relay.start", "run", runID,
		"query", cleaned,
		"about_ollama", cls.AboutOllama,
		"has_date", cls.Date != nil)

	searchEnabled := p.searcher != nil
	shortPath := notify.ShortenPath(p.searchRoot())

	var fileCtx assemble.Context
	if searchEnabled && cleaned != "" && !strings.Contains(strings.ToLower(cleaned), "onedrive") {
		_, searchSpan := tracer.Start(ctx, "relay.search")
		kw := query.Extract(cleaned)
		results := p.searcher.Search(kw, search.Options{})
		fileCtx = assemble.Assemble(results, p.extractor, assemble.Config{
			Budget:   p.searchCfg.ContextBudget,
			MaxFiles: p.searchCfg.MaxFiles,
		})
		searchSpan.SetAttributes(
			attribute.Int("search.results", len(results)),
			attribute.Int("search.included", len(fileCtx.Files)))
		searchSpan.End()
		slog.Info("relay.search", "run", runID,
			"terms", kw.All(), "results", len(results), "included", len(fileCtx.Files))
	}

	promptText := prompt.Build(prompt.Input{
		Query:         cleaned,
		Context:       fileCtx.Text,
		Files:         fileCtx.Files,
		SearchPath:    shortPath,
		SearchEnabled: searchEnabled,
	}, cls)

	genCtx, genSpan := tracer.Start(ctx, "relay.generate")
	answer, err := p.generator.Generate(genCtx, promptText)
	if err != nil {
		genSpan.RecordError(err)
		genSpan.SetStatus(codes.Error, "generation failed")
	}
	genSpan.End()

	if err != nil {
		slog.Error("relay.generate_failed", "run", runID, "error", err)
		answer = ollama.Fallback(cls, cleaned, shortPath)
	} else if len(fileCtx.Files) > 0 && !cls.AboutOllama {
		answer = appendRawResults(answer, fileCtx.Text)
	}

	if p.sender == nil {
		slog.Warn("relay.no_webhook, answer dropped", "run", runID)
		return
	}

	sendCtx, sendSpan := tracer.Start(ctx, "relay.notify")
	res := p.sender.Send(sendCtx, cleaned, answer, p.searchRoot())
	if !res.OK() {
		sendSpan.SetStatus(codes.Error, res.Message)
		sendSpan.End()
		slog.Error("relay.notify_failed", "run", runID, "code", res.Code, "message", res.Message)
		return
	}
	sendSpan.SetAttributes(attribute.String("notify.format", res.Format))
	sendSpan.End()
	slog.Info("relay.done", "run", runID, "code", res.Code, "format", res.Format)
}

func (p *Processor) searchRoot() string {
	if p.searcher == nil {
		return ""
	}
	return p.searcher.Root()
}

// appendRawResults normalizes the answer heading and attaches the original
// search results, so the user can verify the model against its sources.
func appendRawResults(answer, rawContext string) string {
	if !strings.Contains(answer, "【回答】") {
		answer = "【回答】\n" + answer
	}

	raw := "\n\n【検索結果原文】\n" + rawContext
	if utf8.RuneCountInString(answer)+utf8.RuneCountInString(raw) > rawSectionBudget {
		runes := []rune(raw)
		if len(runes) > rawSectionMax {
			raw = string(runes[:rawSectionMax]) + "\n...(省略)...\n"
		}
	}
	return answer + raw
}
