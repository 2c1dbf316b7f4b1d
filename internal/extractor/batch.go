package extractor

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/pouchspec/internal/model"
)

// BatchInput is one file to extract, with an optional quotation.
type BatchInput struct {
	Quotation *model.Quotation
	File      model.DesignFile
}

// BatchItem is the outcome for one input, at the same index.
type BatchItem struct {
	Err    error
	FileID string
	Result model.ExtractionResult
	Index  int
}

// ExtractBatch extracts inputs with at most parallel workers. Results keep
// input order. Once ctx is done no further input is started and the
// remaining items carry the context error.
func (e *Extractor) ExtractBatch(ctx context.Context, inputs []BatchInput, parallel int) []BatchItem {
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	items := make([]BatchItem, len(inputs))
	for i := range inputs {
		items[i] = BatchItem{Index: i, FileID: inputs[i].File.ID}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i := range inputs {
		if err := gctx.Err(); err != nil {
			items[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Result = e.ExtractSpecifications(&inputs[i].File, inputs[i].Quotation)
			return nil
		})
	}

	_ = g.Wait()
	return items
}
