package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/sidefx/internal/label"
	"github.com/ppiankov/sidefx/internal/model"
)

// Processor defines the interface for extracting effects from one label
type Processor interface {
	ProcessLabel(ctx context.Context, l label.Label) (*model.DrugEffects, error)
}

// LabelInput is one label together with where it came from
type LabelInput struct {
	Source string
	Label  label.Label
}

// LabelJob represents a single label extraction job
type LabelJob struct {
	Index     int
	Input     LabelInput
	Processor Processor
}

// Execute executes the label job
func (j *LabelJob) Execute(ctx context.Context) Result {
	effects, err := j.Processor.ProcessLabel(ctx, j.Input.Label)
	return &LabelResult{
		Index:   j.Index,
		Source:  j.Input.Source,
		LabelID: j.Input.Label.ID,
		Effects: effects,
		Error:   err,
	}
}

// LabelResult represents the result of a label job
type LabelResult struct {
	Index   int
	Source  string
	LabelID string
	Effects *model.DrugEffects
	Error   error
}

// GetError returns the error from the label result
func (r *LabelResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many labels concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int

	// OnResult, when set, is called for each result as it completes
	OnResult func(*LabelResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessLabels processes labels concurrently. Results are returned in
// input order regardless of completion order.
func (b *BatchProcessor) ProcessLabels(ctx context.Context, labels []label.Label) []*LabelResult {
	inputs := make([]LabelInput, len(labels))
	for i, l := range labels {
		inputs[i] = LabelInput{Label: l}
	}
	return b.ProcessInputs(ctx, inputs)
}

// ProcessInputs is ProcessLabels for labels that carry a source
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []LabelInput) []*LabelResult {
	if len(inputs) == 0 {
		return []*LabelResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, input := range inputs {
			job := &LabelJob{
				Index:     i,
				Input:     input,
				Processor: b.processor,
			}
			if !pool.Submit(job) {
				return
			}
		}
	}()

	ordered := make([]*LabelResult, len(inputs))
	for result := range pool.Results() {
		r := result.(*LabelResult)
		ordered[r.Index] = r
		if b.OnResult != nil {
			b.OnResult(r)
		}
	}

	// Jobs never run because the context ended
	for i, r := range ordered {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		ordered[i] = &LabelResult{
			Index:   i,
			Source:  inputs[i].Source,
			LabelID: inputs[i].Label.ID,
			Error:   fmt.Errorf("not processed: %w", err),
		}
	}

	return ordered
}

// ProcessFiles reads label bundles one file at a time and processes their
// labels concurrently. Results follow file order, then record order.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) ([]*LabelResult, error) {
	var results []*LabelResult

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		bundle, err := label.ReadFile(path)
		if err != nil {
			return results, fmt.Errorf("read labels: %w", err)
		}

		inputs := make([]LabelInput, len(bundle.Results))
		for i, l := range bundle.Results {
			inputs[i] = LabelInput{Source: path, Label: l}
		}

		for _, r := range b.ProcessInputs(ctx, inputs) {
			r.Index = len(results)
			results = append(results, r)
		}
	}

	return results, nil
}
