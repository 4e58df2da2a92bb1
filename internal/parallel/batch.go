package parallel

import "context"

// Batches splits items into consecutive groups of at most size. A size of
// zero or less yields a single batch.
func Batches(items []any, size int) [][]any {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]any{items}
	}

	batches := make([][]any, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// ProcessBatches runs the registered processor once per batch and flattens
// the results: a processor returning a slice contributes its elements, any
// other value contributes itself. Failed batches are skipped (or abort the
// whole run when AbortOnError is set).
func (e *Executor) ProcessBatches(ctx context.Context, batches [][]any, processorID string, opts Options) ([]any, error) {
	items := make([]any, len(batches))
	for i, b := range batches {
		items[i] = b
	}

	results, err := e.ExecuteItems(ctx, items, processorID, opts)
	if err != nil {
		return nil, err
	}

	var flat []any
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		switch v := r.Value.(type) {
		case []any:
			flat = append(flat, v...)
		case nil:
		default:
			flat = append(flat, v)
		}
	}
	return flat, nil
}
