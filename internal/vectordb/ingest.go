package vectordb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/airportdata"
	"github.com/apronworks/apron-agent/internal/parallel"
)

const (
	ingestBatchSize = 16
	ingestProcessor = "index-documents"
)

// IngestSource provides the structured records the ingestor renders into
// searchable documents.
type IngestSource interface {
	AllStands(ctx context.Context) ([]airportdata.Stand, error)
	AllMaintenance(ctx context.Context) ([]airportdata.MaintenanceRequest, error)
	Settings(ctx context.Context) ([]airportdata.OperationalSetting, error)
}

// Ingestor renders airport records into documents and indexes them in
// batches.
type Ingestor struct {
	data   IngestSource
	store  VectorStore
	exec   *parallel.Executor
	logger *zap.Logger
}

// NewIngestor builds an Ingestor writing to store.
func NewIngestor(data IngestSource, store VectorStore, logger *zap.Logger) (*Ingestor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Ingestor{
		data:   data,
		store:  store,
		exec:   parallel.NewExecutor(2, logger),
		logger: logger,
	}
	if err := in.exec.RegisterProcessor(ingestProcessor, in.indexBatch); err != nil {
		in.exec.Destroy()
		return nil, err
	}
	return in, nil
}

// Destroy stops the ingestor's batch executor.
func (in *Ingestor) Destroy() { in.exec.Destroy() }

// IngestAll reads every stand, maintenance request and operational setting,
// renders each as a document and indexes them. Returns the number of
// documents indexed. Any failed batch fails the whole run.
func (in *Ingestor) IngestAll(ctx context.Context) (int, error) {
	docs, err := in.renderAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	items := make([]any, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	batches := parallel.Batches(items, ingestBatchSize)

	results, err := in.exec.ProcessBatches(ctx, batches, ingestProcessor, parallel.Options{
		MaxConcurrent: 4,
		AbortOnError:  true,
	})
	if err != nil {
		return 0, fmt.Errorf("indexing documents: %w", err)
	}

	total := 0
	for _, r := range results {
		if n, ok := r.(int); ok {
			total += n
		}
	}
	in.logger.Info("knowledge documents indexed", zap.Int("count", total))
	return total, nil
}

func (in *Ingestor) renderAll(ctx context.Context) ([]Document, error) {
	stands, err := in.data.AllStands(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stands: %w", err)
	}
	maint, err := in.data.AllMaintenance(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading maintenance requests: %w", err)
	}
	settings, err := in.data.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	docs := make([]Document, 0, len(stands)+len(maint)+len(settings))
	for _, st := range stands {
		docs = append(docs, standDocument(st))
	}
	for _, m := range maint {
		docs = append(docs, maintenanceDocument(m))
	}
	for _, o := range settings {
		docs = append(docs, settingDocument(o))
	}
	return docs, nil
}

func standDocument(st airportdata.Stand) Document {
	kind := "remote stand"
	if st.ContactStand {
		kind = "contact stand"
	}
	fuel := "no fuel pit"
	if st.HasFuelPit {
		fuel = "a fuel pit"
	}
	content := fmt.Sprintf(
		"Stand %s is a size %s %s in terminal %s, pier %s, with %s. Current status: %s.",
		st.Name, st.SizeCode, kind, st.Terminal, st.Pier, fuel, st.Status)
	return Document{
		ID:      "stand-" + st.Name,
		Content: content,
		Metadata: DocumentMetadata{
			Source:    SourceStandNotes,
			EntityID:  st.Name,
			Terminal:  st.Terminal,
			UpdatedAt: st.UpdatedAt,
		},
	}
}

func maintenanceDocument(m airportdata.MaintenanceRequest) Document {
	content := fmt.Sprintf(
		"Maintenance on stand %s from %s to %s, status %s: %s",
		m.StandName,
		m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"),
		m.Status, m.Description)
	return Document{
		ID:      "maintenance-" + m.ID,
		Content: content,
		Metadata: DocumentMetadata{
			Source:    SourceMaintenanceLog,
			EntityID:  m.StandName,
			UpdatedAt: m.UpdatedAt,
		},
	}
}

func settingDocument(o airportdata.OperationalSetting) Document {
	content := fmt.Sprintf("Operational setting %s is %s. %s", o.Key, o.Value, o.Description)
	return Document{
		ID:      "setting-" + o.Key,
		Content: content,
		Metadata: DocumentMetadata{
			Source:    SourceOperationalDocs,
			EntityID:  o.Key,
			UpdatedAt: o.UpdatedAt,
		},
	}
}

// indexBatch is the registered processor: one payload is one batch of
// documents.
func (in *Ingestor) indexBatch(ctx context.Context, payload any) (any, error) {
	batch, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected batch payload %T", payload)
	}
	docs := make([]Document, 0, len(batch))
	for _, item := range batch {
		doc, ok := item.(Document)
		if !ok {
			return nil, fmt.Errorf("unexpected document payload %T", item)
		}
		docs = append(docs, doc)
	}
	if err := in.store.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return len(docs), nil
}
