// Package pipeline turns one drug label into a DrugEffects record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/sidefx/internal/cache"
	"github.com/ppiankov/sidefx/internal/extract"
	"github.com/ppiankov/sidefx/internal/label"
	"github.com/ppiankov/sidefx/internal/llm"
	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/table"
)

var (
	// ErrNoDrugName marks a label without an openFDA generic name
	ErrNoDrugName = errors.New("no generic name found")

	// ErrNoReactions marks a label with no usable adverse reactions content
	ErrNoReactions = errors.New("no adverse reactions table found")
)

// IsSkip reports whether err is a per-record skip rather than a failure
func IsSkip(err error) bool {
	return errors.Is(err, ErrNoDrugName) || errors.Is(err, ErrNoReactions)
}

// Pipeline orchestrates extraction for a single label
type Pipeline struct {
	extractor *llm.Extractor // nil or disabled when no provider is configured
	config    *model.Config
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithExtractor uses e instead of building one from configuration
func WithExtractor(e *llm.Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// NewPipeline creates a new pipeline with the given configuration.
// limiter, when non-nil, throttles LLM calls.
func NewPipeline(cfg *model.Config, limiter llm.Waiter, opts ...Option) *Pipeline {
	p := &Pipeline{config: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.extractor == nil && cfg.LLM.Provider != "" && cfg.Extraction.Mode != model.ModeTable {
		var extractorOpts []llm.ExtractorOption
		if cfg.Cache.Enabled {
			if c := cache.New(cfg.Cache); c != nil {
				extractorOpts = append(extractorOpts, llm.WithCache(c, 0))
			}
		}
		if limiter != nil {
			extractorOpts = append(extractorOpts, llm.WithLimiter(limiter))
		}

		e, err := llm.NewExtractor(llm.ConfigFromModel(cfg), extractorOpts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to initialize LLM provider: %v\n", err)
		} else {
			p.extractor = e
		}
	}

	return p
}

// LLMEnabled reports whether a language model provider is configured
func (p *Pipeline) LLMEnabled() bool {
	return p.extractor.IsEnabled()
}

// CheckLLM fails when no provider is configured or the provider does not
// answer its availability check
func (p *Pipeline) CheckLLM(ctx context.Context) error {
	if !p.LLMEnabled() {
		return fmt.Errorf("no LLM provider configured")
	}
	if !p.extractor.Available(ctx) {
		return fmt.Errorf("LLM provider %s is not available", p.extractor.ProviderName())
	}
	return nil
}

// ProcessLabel extracts the adverse effects of one label.
// ErrNoDrugName and ErrNoReactions are returned (wrapped) for labels that
// should be skipped.
func (p *Pipeline) ProcessLabel(ctx context.Context, l label.Label) (*model.DrugEffects, error) {
	name := l.DrugName()
	if name == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoDrugName, l.ID)
	}

	content := l.TableHTML()
	isTable := content != ""
	if !isTable && p.config.Extraction.UseFreeText {
		text, err := extract.VisibleText(l.ReactionsText())
		if err != nil {
			return nil, fmt.Errorf("%s: read adverse reactions: %w", name, err)
		}
		content = text
	}
	if content == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoReactions, name)
	}

	result := &model.DrugEffects{
		DrugName: name,
		LabelID:  l.ID,
		SetID:    setID(l),
	}

	// A malformed table is still handed to the LLM as raw HTML
	var tbl *table.Table
	var tableErr error
	if isTable {
		tbl, tableErr = table.Extract(content)
		if tbl != nil {
			result.DroppedRows = len(tbl.Dropped)
		}
	} else {
		tableErr = fmt.Errorf("no table, free text only")
	}

	mode := p.config.Extraction.Mode
	if mode == "" {
		mode = model.ModeAuto
	}

	switch mode {
	case model.ModeTable:
		return p.fromTable(result, tbl, tableErr)

	case model.ModeLLM:
		if !p.extractor.IsEnabled() {
			return nil, fmt.Errorf("%s: LLM mode requires an LLM provider", name)
		}
		return p.fromLLM(ctx, result, content, tbl)

	case model.ModeAuto:
		if !p.extractor.IsEnabled() {
			return p.fromTable(result, tbl, tableErr)
		}
		res, err := p.fromLLM(ctx, result, content, tbl)
		if err == nil {
			return res, nil
		}
		if tbl == nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Warning: LLM extraction failed for %s, using table parser: %v\n", name, err)
		return p.fromTable(result, tbl, nil)

	default:
		return nil, fmt.Errorf("unknown extraction mode: %s (supported: auto, llm, table)", mode)
	}
}

func (p *Pipeline) fromTable(result *model.DrugEffects, tbl *table.Table, tableErr error) (*model.DrugEffects, error) {
	if tableErr != nil {
		var malformed *table.MalformedInputError
		if errors.As(tableErr, &malformed) {
			return nil, fmt.Errorf("%s: parse table: %w", result.DrugName, tableErr)
		}
		return nil, fmt.Errorf("%w for %s (%v)", ErrNoReactions, result.DrugName, tableErr)
	}

	result.Source = model.SourceTable
	result.Effects = extract.TableEffects(tbl)
	if result.Effects == nil {
		result.Effects = []model.Effect{}
	}
	return result, nil
}

func (p *Pipeline) fromLLM(ctx context.Context, result *model.DrugEffects, content string, tbl *table.Table) (*model.DrugEffects, error) {
	req := llm.ExtractRequest{
		DrugName: result.DrugName,
		Content:  content,
	}
	if p.config.Extraction.UseTableHint {
		req.Table = tbl
	}

	resp, cached, err := p.extractor.Extract(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", result.DrugName, err)
	}

	out := *result
	out.Source = model.SourceLLM
	if cached {
		out.Source = model.SourceCache
	}
	out.Model = resp.Model
	out.Effects = resp.Effects
	if out.Effects == nil {
		out.Effects = []model.Effect{}
	}
	return &out, nil
}

func setID(l label.Label) string {
	if l.SetID != "" {
		return l.SetID
	}
	if len(l.OpenFDA.SPLSetID) > 0 {
		return l.OpenFDA.SPLSetID[0]
	}
	return ""
}
