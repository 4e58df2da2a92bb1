package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/airportdata"
	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
)

// Fact source names, one per domain data service.
const (
	SourceStandData       = "stand-data-service"
	SourceReferenceData   = "reference-data-service"
	SourceMaintenanceData = "maintenance-data-service"
	SourceOperationalData = "operational-data-service"
)

// structured dispatches by intent category to the domain data services.
// A failing or absent service contributes nothing; the failure is recorded
// on the result rather than returned.
func (r *Retriever) structured(ctx context.Context, x *llm.Extraction) ([]knowledge.Fact, []string) {
	if r.data == nil {
		r.logger.Warn("structured retrieval requested without data service")
		return nil, []string{SourceStandData}
	}

	switch x.Intent.IntentCategory() {
	case llm.CategoryAsset:
		return r.assetFacts(ctx, x)
	case llm.CategoryReference:
		return r.referenceFacts(ctx, x)
	case llm.CategoryMaintenance:
		return r.maintenanceFacts(ctx, x)
	case llm.CategoryOperational:
		return r.operationalFacts(ctx)
	}
	return nil, nil
}

func (r *Retriever) assetFacts(ctx context.Context, x *llm.Extraction) ([]knowledge.Fact, []string) {
	var facts []knowledge.Fact

	if name := x.Entities[llm.EntityStand]; name != "" {
		stand, err := r.data.StandByName(ctx, name)
		switch {
		case errors.Is(err, airportdata.ErrNotFound):
			// No fact, not a degradation.
		case err != nil:
			return facts, r.failed(SourceStandData, err)
		default:
			facts = append(facts, factOf(SourceStandData, "stand", stand))
		}
	}

	if terminal := x.Entities[llm.EntityTerminal]; terminal != "" {
		stands, err := r.data.StandsByTerminal(ctx, terminal)
		if err != nil {
			return facts, r.failed(SourceStandData, err)
		}
		for _, st := range stands {
			facts = append(facts, factOf(SourceStandData, "stand", &st))
		}
	}

	if pier := x.Entities[llm.EntityPier]; pier != "" {
		stands, err := r.data.StandsByPier(ctx, pier)
		if err != nil {
			return facts, r.failed(SourceStandData, err)
		}
		for _, st := range stands {
			facts = append(facts, factOf(SourceStandData, "stand", &st))
		}
	}

	return facts, nil
}

func (r *Retriever) referenceFacts(ctx context.Context, x *llm.Extraction) ([]knowledge.Fact, []string) {
	var facts []knowledge.Fact

	lookups := []struct {
		entity string
		kind   string
		get    func(context.Context, string) (any, error)
	}{
		{"airport", "airport", func(ctx context.Context, v string) (any, error) {
			return r.data.AirportByCode(ctx, v)
		}},
		{llm.EntityAirline, "airline", func(ctx context.Context, v string) (any, error) {
			return r.data.AirlineByCode(ctx, v)
		}},
		{llm.EntityAircraft, "aircraft_type", func(ctx context.Context, v string) (any, error) {
			return r.data.AircraftTypeByCode(ctx, v)
		}},
	}

	for _, l := range lookups {
		value := x.Entities[l.entity]
		if value == "" {
			continue
		}
		item, err := l.get(ctx, value)
		switch {
		case errors.Is(err, airportdata.ErrNotFound):
		case err != nil:
			return facts, r.failed(SourceReferenceData, err)
		default:
			facts = append(facts, factOf(SourceReferenceData, l.kind, item))
		}
	}

	return facts, nil
}

func (r *Retriever) maintenanceFacts(ctx context.Context, x *llm.Extraction) ([]knowledge.Fact, []string) {
	var facts []knowledge.Fact

	if stand := x.Entities[llm.EntityStand]; stand != "" {
		reqs, err := r.data.MaintenanceByStand(ctx, stand)
		if err != nil {
			return facts, r.failed(SourceMaintenanceData, err)
		}
		for _, m := range reqs {
			facts = append(facts, factOf(SourceMaintenanceData, "maintenance_request", &m))
		}
		return facts, nil
	}

	// Schedule queries without a stand look at the coming week.
	from := time.Now().UTC()
	reqs, err := r.data.MaintenanceInWindow(ctx, from, from.Add(7*24*time.Hour))
	if err != nil {
		return facts, r.failed(SourceMaintenanceData, err)
	}
	for _, m := range reqs {
		facts = append(facts, factOf(SourceMaintenanceData, "maintenance_request", &m))
	}
	return facts, nil
}

func (r *Retriever) operationalFacts(ctx context.Context) ([]knowledge.Fact, []string) {
	settings, err := r.data.Settings(ctx)
	if err != nil {
		return nil, r.failed(SourceOperationalData, err)
	}
	var facts []knowledge.Fact
	for _, s := range settings {
		facts = append(facts, factOf(SourceOperationalData, "operational_setting", &s))
	}
	return facts, nil
}

func (r *Retriever) failed(source string, err error) []string {
	r.logger.Warn("data service failed", zap.String("source", source), zap.Error(err))
	if r.onUpstreamFailure != nil {
		r.onUpstreamFailure(source)
	}
	return []string{source}
}

// factOf flattens a typed record into a generic fact via its JSON form.
func factOf(source, kind string, item any) knowledge.Fact {
	data := map[string]any{}
	if raw, err := json.Marshal(item); err == nil {
		_ = json.Unmarshal(raw, &data)
	}
	return knowledge.Fact{Source: source, Kind: kind, Data: data}
}
