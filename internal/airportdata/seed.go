package airportdata

import (
	"context"
	"fmt"
	"time"
)

// Seed loads a small demonstration dataset: one airport with two terminals,
// three piers and a handful of stands, plus reference data and settings.
// Existing rows with the same names cause an error, so call it only on a
// fresh database.
func (s *Store) Seed(ctx context.Context) error {
	airport := Airport{
		ID: "ap-1", IATACode: "APW", ICAOCode: "EHAW",
		Name: "Apronworks International", City: "Amstelveen", Country: "NL",
		Latitude: 52.3, Longitude: 4.76, Timezone: "Europe/Amsterdam",
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO airports (id, iata_code, icao_code, name, city, country,
			latitude, longitude, timezone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		airport.ID, airport.IATACode, airport.ICAOCode, airport.Name,
		airport.City, airport.Country, airport.Latitude, airport.Longitude,
		airport.Timezone)
	if err != nil {
		return fmt.Errorf("seeding airport: %w", err)
	}

	terminals := []Terminal{
		{Name: "T1", AirportCode: "APW", Description: "Main terminal, piers A and B"},
		{Name: "T2", AirportCode: "APW", Description: "Low-cost terminal, pier C"},
	}
	for _, t := range terminals {
		if _, err := s.CreateTerminal(ctx, t); err != nil {
			return fmt.Errorf("seeding terminal %s: %w", t.Name, err)
		}
	}

	piers := []Pier{
		{ID: "pier-a", Name: "A", Terminal: "T1", Description: "Contact stands, wide-body capable"},
		{ID: "pier-b", Name: "B", Terminal: "T1", Description: "Narrow-body contact stands"},
		{ID: "pier-c", Name: "C", Terminal: "T2", Description: "Remote stands, bus boarding"},
	}
	for _, p := range piers {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO piers (id, name, terminal, description) VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, p.Terminal, p.Description)
		if err != nil {
			return fmt.Errorf("seeding pier %s: %w", p.Name, err)
		}
	}

	stands := []Stand{
		{Name: "A12", Terminal: "T1", Pier: "A", Status: StandAvailable, Latitude: 52.301, Longitude: 4.761, SizeCode: "E", ContactStand: true, HasFuelPit: true},
		{Name: "A14", Terminal: "T1", Pier: "A", Status: StandOccupied, Latitude: 52.302, Longitude: 4.762, SizeCode: "E", ContactStand: true, HasFuelPit: true},
		{Name: "B3", Terminal: "T1", Pier: "B", Status: StandMaintenance, Latitude: 52.303, Longitude: 4.763, SizeCode: "C", ContactStand: true},
		{Name: "B5", Terminal: "T1", Pier: "B", Status: StandAvailable, Latitude: 52.304, Longitude: 4.764, SizeCode: "C", ContactStand: true},
		{Name: "C1", Terminal: "T2", Pier: "C", Status: StandAvailable, Latitude: 52.305, Longitude: 4.765, SizeCode: "C"},
		{Name: "C2", Terminal: "T2", Pier: "C", Status: StandClosed, Latitude: 52.306, Longitude: 4.766, SizeCode: "C"},
	}
	for _, st := range stands {
		if _, err := s.CreateStand(ctx, st); err != nil {
			return fmt.Errorf("seeding stand %s: %w", st.Name, err)
		}
	}

	airlines := []Airline{
		{ID: "al-1", IATACode: "KL", ICAOCode: "KLM", Name: "KLM Royal Dutch Airlines", Country: "NL", Callsign: "KLM"},
		{ID: "al-2", IATACode: "BA", ICAOCode: "BAW", Name: "British Airways", Country: "GB", Callsign: "SPEEDBIRD"},
	}
	for _, a := range airlines {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO airlines (id, iata_code, icao_code, name, country, callsign)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.IATACode, a.ICAOCode, a.Name, a.Country, a.Callsign)
		if err != nil {
			return fmt.Errorf("seeding airline %s: %w", a.IATACode, err)
		}
	}

	aircraft := []AircraftType{
		{ID: "ac-1", ICAOCode: "A320", IATACode: "320", Name: "Airbus A320", SizeCode: "C", WingspanM: 35.8, LengthM: 37.6},
		{ID: "ac-2", ICAOCode: "B77W", IATACode: "77W", Name: "Boeing 777-300ER", SizeCode: "E", WingspanM: 64.8, LengthM: 73.9},
	}
	for _, a := range aircraft {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO aircraft_types (id, icao_code, iata_code, name, size_code, wingspan_m, length_m)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.ICAOCode, a.IATACode, a.Name, a.SizeCode, a.WingspanM, a.LengthM)
		if err != nil {
			return fmt.Errorf("seeding aircraft type %s: %w", a.ICAOCode, err)
		}
	}

	maintenance := MaintenanceRequest{
		StandName:   "B3",
		StartDate:   time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC),
		Status:      MaintenanceInProgress,
		Description: "Fuel hydrant inspection",
		RequestedBy: "ops",
	}
	if _, err := s.CreateMaintenance(ctx, maintenance); err != nil {
		return fmt.Errorf("seeding maintenance request: %w", err)
	}

	settings := []OperationalSetting{
		{Key: "turnaround_buffer_minutes", Value: "15", Description: "Buffer between consecutive allocations on a stand"},
		{Key: "max_towing_per_hour", Value: "12", Description: "Towing movements the apron team can handle per hour"},
		{Key: "night_closure_start", Value: "23:00", Description: "Start of the nightly apron closure window"},
	}
	for _, o := range settings {
		if err := s.SetSetting(ctx, o); err != nil {
			return fmt.Errorf("seeding setting %s: %w", o.Key, err)
		}
	}

	return nil
}
