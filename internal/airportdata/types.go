// Package airportdata exposes the structured airport domain services:
// stands, terminals, piers, reference data, maintenance requests and
// operational settings.
package airportdata

import "time"

// StandStatus is the operational state of a stand.
type StandStatus string

const (
	StandAvailable   StandStatus = "available"
	StandOccupied    StandStatus = "occupied"
	StandMaintenance StandStatus = "maintenance"
	StandClosed      StandStatus = "closed"
)

// Stand is one aircraft parking position.
type Stand struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Terminal     string      `json:"terminal"`
	Pier         string      `json:"pier"`
	Status       StandStatus `json:"status"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	SizeCode     string      `json:"size_code"`
	ContactStand bool        `json:"contact_stand"`
	HasFuelPit   bool        `json:"has_fuel_pit"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Terminal groups piers and stands.
type Terminal struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AirportCode string    `json:"airport_code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Pier is a concourse within a terminal.
type Pier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Terminal    string `json:"terminal"`
	Description string `json:"description"`
}

// Airport is static reference data.
type Airport struct {
	ID        string  `json:"id"`
	IATACode  string  `json:"iata_code"`
	ICAOCode  string  `json:"icao_code"`
	Name      string  `json:"name"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// Airline is static reference data.
type Airline struct {
	ID       string `json:"id"`
	IATACode string `json:"iata_code"`
	ICAOCode string `json:"icao_code"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Callsign string `json:"callsign"`
}

// AircraftType is static reference data.
type AircraftType struct {
	ID        string  `json:"id"`
	ICAOCode  string  `json:"icao_code"`
	IATACode  string  `json:"iata_code"`
	Name      string  `json:"name"`
	SizeCode  string  `json:"size_code"`
	WingspanM float64 `json:"wingspan_m"`
	LengthM   float64 `json:"length_m"`
}

// MaintenanceStatus is the lifecycle state of a maintenance request.
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

// MaintenanceRequest blocks a stand for a time window.
type MaintenanceRequest struct {
	ID          string            `json:"id"`
	StandName   string            `json:"stand_name"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Status      MaintenanceStatus `json:"status"`
	Description string            `json:"description"`
	RequestedBy string            `json:"requested_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// OperationalSetting is a keyed configuration value for airport operations,
// such as turnaround buffers or capacity limits.
type OperationalSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
