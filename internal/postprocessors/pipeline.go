// Package postprocessors turns source documents into chunk payloads.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.ChunkPipeline = (*Pipeline)(nil)

// Processor is one stage of a pipeline. The first stage receives nil chunks
// and creates them; later stages may rewrite or annotate them.
type Processor interface {
	Name() string
	Process(ctx context.Context, doc domain.SourceDocument, chunks []domain.ChunkPayload) ([]domain.ChunkPayload, error)
}

// Normaliser rewrites a document's content before the first stage runs.
type Normaliser interface {
	Normalise(ctx context.Context, doc domain.SourceDocument) (domain.SourceDocument, error)
}

// Pipeline chains multiple processors and runs them in order.
type Pipeline struct {
	normaliser Normaliser
	processors []Processor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...Processor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the document through all processors in order.
func (p *Pipeline) Process(ctx context.Context, doc domain.SourceDocument) ([]domain.ChunkPayload, error) {
	if err := domain.ValidateDocumentID(doc.ID); err != nil {
		return nil, err
	}

	if p.normaliser != nil {
		normalised, err := p.normaliser.Normalise(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("normalise %s: %w", doc.ID, err)
		}
		doc = normalised
	}

	var chunks []domain.ChunkPayload

	for _, processor := range p.processors {
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return chunks, nil
}

// SetNormaliser installs n ahead of every processor. Nil removes it.
func (p *Pipeline) SetNormaliser(n Normaliser) {
	p.normaliser = n
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor Processor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.processors))
	for _, processor := range p.processors {
		names = append(names, processor.Name())
	}
	return names
}
