package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/apronworks/apron-agent/internal/airportdata"
	"github.com/apronworks/apron-agent/internal/confirm"
	"github.com/apronworks/apron-agent/internal/format"
	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
	"github.com/apronworks/apron-agent/internal/memory"
	"github.com/apronworks/apron-agent/internal/metrics"
	"github.com/apronworks/apron-agent/internal/retrieval"
	"github.com/apronworks/apron-agent/internal/vectordb"
)

// downData fails every structured lookup.
type downData struct{ err error }

func (d *downData) StandByName(context.Context, string) (*airportdata.Stand, error) {
	return nil, d.err
}
func (d *downData) StandsByTerminal(context.Context, string) ([]airportdata.Stand, error) {
	return nil, d.err
}
func (d *downData) StandsByPier(context.Context, string) ([]airportdata.Stand, error) {
	return nil, d.err
}
func (d *downData) AirportByCode(context.Context, string) (*airportdata.Airport, error) {
	return nil, d.err
}
func (d *downData) AirlineByCode(context.Context, string) (*airportdata.Airline, error) {
	return nil, d.err
}
func (d *downData) AircraftTypeByCode(context.Context, string) (*airportdata.AircraftType, error) {
	return nil, d.err
}
func (d *downData) MaintenanceByStand(context.Context, string) ([]airportdata.MaintenanceRequest, error) {
	return nil, d.err
}
func (d *downData) MaintenanceInWindow(context.Context, time.Time, time.Time) ([]airportdata.MaintenanceRequest, error) {
	return nil, d.err
}
func (d *downData) Settings(context.Context) ([]airportdata.OperationalSetting, error) {
	return nil, d.err
}

type stubVector struct{ results []vectordb.SearchResult }

func (s *stubVector) Search(context.Context, string, int, float32, *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	return s.results, nil
}

func TestDegradedRetrievalStillSucceeds(t *testing.T) {
	// Low confidence selects the combined strategy, so the failing data
	// service and the healthy vector store both run.
	provider := &scriptedProvider{
		extraction: `{"intent":"stand.status","confidence":0.5,"entities":{"stand":"A1"}}`,
		reply:      "Here is what I could find.",
	}

	vec := &stubVector{results: []vectordb.SearchResult{
		{Document: vectordb.Document{ID: "d1", Content: "stand A1 notes"}, Similarity: 0.9},
		{Document: vectordb.Document{ID: "d2", Content: "apron layout"}, Similarity: 0.8},
	}}
	workmem := memory.NewWorking(memory.Options{}, nil)
	col := metrics.New(metrics.Options{}, nil)
	retriever := retrieval.NewRetriever(
		&downData{err: errors.New("connection refused")},
		vec, nil, workmem, retrieval.RetrieverOptions{}, nil)

	p := NewPipeline(Deps{
		Gateway:   llm.NewGateway(provider, nil, llm.GatewayOptions{}, nil),
		Retriever: retriever,
		Formatter: format.New(nil),
		Confirms:  confirm.NewStore(confirm.StoreOptions{}, nil),
		WorkMem:   workmem,
		Metrics:   col,
	}, PipelineOptions{}, nil)
	t.Cleanup(p.Destroy)

	resp, err := p.HandleQuery(context.Background(), "u1", "s1",
		"What's the status of stand A1?", QueryOptions{})
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}

	// The structured backend failed, so facts are empty but vector items
	// survive.
	if len(resp.RawData.Facts) != 0 {
		t.Fatalf("facts = %d, want 0", len(resp.RawData.Facts))
	}
	if len(resp.RawData.Contextual) != 2 {
		t.Fatalf("contextual = %d, want 2", len(resp.RawData.Contextual))
	}
	if resp.RawData.Metadata.Strategy != knowledge.StrategyCombined {
		t.Fatalf("strategy = %s", resp.RawData.Metadata.Strategy)
	}
	if !strings.Contains(resp.Text, "incomplete") {
		t.Fatalf("no degradation note in %q", resp.Text)
	}
	if resp.ErrorKind != "DegradedResult" {
		t.Fatalf("error kind = %s", resp.ErrorKind)
	}

	if p.UpstreamFailureCount() != 1 {
		t.Fatalf("upstream failures = %d, want 1", p.UpstreamFailureCount())
	}

	// The query itself still counts as succeeded.
	counters := requestCounters(t, col)
	if counters["succeeded"] != 1 {
		t.Fatalf("succeeded = %d, want 1", counters["succeeded"])
	}
}
