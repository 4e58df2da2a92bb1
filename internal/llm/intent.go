package llm

// Intent is the enumerated set of query intents the agent understands.
// Free-form provider output is normalized onto this set; anything the
// provider invents maps to IntentUnknown.
type Intent string

const (
	IntentUnknown Intent = "unknown"

	// Factual lookups served by structured retrieval.
	IntentStandDetails        Intent = "stand.details"
	IntentStandStatus         Intent = "stand.status"
	IntentStandLocation       Intent = "stand.location"
	IntentTerminalStands      Intent = "terminal.stands"
	IntentPierStands          Intent = "pier.stands"
	IntentAirportInfo         Intent = "airport.info"
	IntentAirlineInfo         Intent = "airline.info"
	IntentAircraftInfo        Intent = "aircraft.info"
	IntentMaintenanceStatus   Intent = "maintenance.status"
	IntentMaintenanceSchedule Intent = "maintenance.schedule"
	IntentOperationalSettings Intent = "operational.settings"

	// Mutation intents. These never execute directly: the pipeline converts
	// them into pending actions awaiting human confirmation.
	IntentStandCreate       Intent = "stand.create"
	IntentStandUpdate       Intent = "stand.update"
	IntentStandDelete       Intent = "stand.delete"
	IntentTerminalCreate    Intent = "terminal.create"
	IntentTerminalUpdate    Intent = "terminal.update"
	IntentTerminalDelete    Intent = "terminal.delete"
	IntentMaintenanceCreate Intent = "maintenance.create"
	IntentMaintenanceUpdate Intent = "maintenance.update"
	IntentMaintenanceDelete Intent = "maintenance.delete"
)

// Category groups intents for structured-retrieval dispatch.
type Category string

const (
	CategoryAsset       Category = "asset"
	CategoryReference   Category = "reference"
	CategoryMaintenance Category = "maintenance"
	CategoryOperational Category = "operational"
	CategoryNone        Category = "none"
)

var knownIntents = map[Intent]bool{
	IntentStandDetails:        true,
	IntentStandStatus:         true,
	IntentStandLocation:       true,
	IntentTerminalStands:      true,
	IntentPierStands:          true,
	IntentAirportInfo:         true,
	IntentAirlineInfo:         true,
	IntentAircraftInfo:        true,
	IntentMaintenanceStatus:   true,
	IntentMaintenanceSchedule: true,
	IntentOperationalSettings: true,
	IntentStandCreate:         true,
	IntentStandUpdate:         true,
	IntentStandDelete:         true,
	IntentTerminalCreate:      true,
	IntentTerminalUpdate:      true,
	IntentTerminalDelete:      true,
	IntentMaintenanceCreate:   true,
	IntentMaintenanceUpdate:   true,
	IntentMaintenanceDelete:   true,
}

var factualIntents = map[Intent]bool{
	IntentStandDetails:        true,
	IntentStandStatus:         true,
	IntentStandLocation:       true,
	IntentTerminalStands:      true,
	IntentPierStands:          true,
	IntentAirportInfo:         true,
	IntentAirlineInfo:         true,
	IntentAircraftInfo:        true,
	IntentMaintenanceStatus:   true,
	IntentMaintenanceSchedule: true,
	IntentOperationalSettings: true,
}

// ParseIntent normalizes a raw intent string onto the closed intent set.
func ParseIntent(raw string) Intent {
	if knownIntents[Intent(raw)] {
		return Intent(raw)
	}
	return IntentUnknown
}

// Factual reports whether the intent is a structured factual lookup.
func (i Intent) Factual() bool { return factualIntents[i] }

// Mutation reports whether the intent requests a side-effecting change.
func (i Intent) Mutation() bool {
	return knownIntents[i] && !factualIntents[i] && i != IntentUnknown
}

// IntentCategory returns the structured-retrieval dispatch category.
func (i Intent) IntentCategory() Category {
	switch i {
	case IntentStandDetails, IntentStandStatus, IntentStandLocation,
		IntentTerminalStands, IntentPierStands:
		return CategoryAsset
	case IntentAirportInfo, IntentAirlineInfo, IntentAircraftInfo:
		return CategoryReference
	case IntentMaintenanceStatus, IntentMaintenanceSchedule:
		return CategoryMaintenance
	case IntentOperationalSettings:
		return CategoryOperational
	}
	return CategoryNone
}

// Entity kinds that count as significant for strategy selection.
const (
	EntityStand       = "stand"
	EntityTerminal    = "terminal"
	EntityPier        = "pier"
	EntityAirline     = "airline"
	EntityAircraft    = "aircraft"
	EntityMaintenance = "maintenance"
	EntityStartDate   = "startDate"
	EntityEndDate     = "endDate"
)

// SignificantEntityKinds are the entity kinds that, with high confidence,
// push strategy selection toward structured retrieval.
var SignificantEntityKinds = map[string]bool{
	EntityStand:       true,
	EntityTerminal:    true,
	EntityAirline:     true,
	EntityAircraft:    true,
	EntityMaintenance: true,
}
