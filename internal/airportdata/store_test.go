package airportdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apronworks/apron-agent/internal/db"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	if err := store.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return store
}

func TestStandLookups(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	stand, err := store.StandByName(ctx, "A12")
	if err != nil {
		t.Fatalf("StandByName: %v", err)
	}
	if stand.Terminal != "T1" || stand.Pier != "A" || !stand.ContactStand {
		t.Fatalf("stand fields wrong: %+v", stand)
	}
	if stand.Status != StandAvailable {
		t.Fatalf("status = %s", stand.Status)
	}

	if _, err := store.StandByName(ctx, "Z99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing stand: err = %v, want ErrNotFound", err)
	}

	t1, err := store.StandsByTerminal(ctx, "T1")
	if err != nil {
		t.Fatalf("StandsByTerminal: %v", err)
	}
	if len(t1) != 4 {
		t.Fatalf("T1 has %d stands, want 4", len(t1))
	}
	// Ordered by name.
	if t1[0].Name != "A12" || t1[3].Name != "B5" {
		t.Fatalf("ordering wrong: %s..%s", t1[0].Name, t1[3].Name)
	}

	pierC, err := store.StandsByPier(ctx, "C")
	if err != nil {
		t.Fatalf("StandsByPier: %v", err)
	}
	if len(pierC) != 2 {
		t.Fatalf("pier C has %d stands, want 2", len(pierC))
	}
}

func TestStandCRUD(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	created, err := store.CreateStand(ctx, Stand{
		Name: "D1", Terminal: "T2", Pier: "C", SizeCode: "C",
	})
	if err != nil {
		t.Fatalf("CreateStand: %v", err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if created.Status != StandAvailable {
		t.Fatalf("default status = %s", created.Status)
	}

	created.Status = StandOccupied
	created.HasFuelPit = true
	if err := store.UpdateStand(ctx, *created); err != nil {
		t.Fatalf("UpdateStand: %v", err)
	}
	got, err := store.StandByName(ctx, "D1")
	if err != nil {
		t.Fatalf("StandByName after update: %v", err)
	}
	if got.Status != StandOccupied || !got.HasFuelPit {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := store.SetStandStatus(ctx, "D1", StandClosed); err != nil {
		t.Fatalf("SetStandStatus: %v", err)
	}
	got, _ = store.StandByName(ctx, "D1")
	if got.Status != StandClosed {
		t.Fatalf("status = %s, want closed", got.Status)
	}

	if err := store.DeleteStand(ctx, "D1"); err != nil {
		t.Fatalf("DeleteStand: %v", err)
	}
	if err := store.DeleteStand(ctx, "D1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestTerminalCRUD(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	term, err := store.TerminalByName(ctx, "T2")
	if err != nil {
		t.Fatalf("TerminalByName: %v", err)
	}
	if term.AirportCode != "APW" {
		t.Fatalf("terminal fields wrong: %+v", term)
	}

	if _, err := store.CreateTerminal(ctx, Terminal{Name: "T3", AirportCode: "APW"}); err != nil {
		t.Fatalf("CreateTerminal: %v", err)
	}
	if err := store.UpdateTerminal(ctx, Terminal{Name: "T3", Description: "cargo"}); err != nil {
		t.Fatalf("UpdateTerminal: %v", err)
	}
	got, _ := store.TerminalByName(ctx, "T3")
	if got.Description != "cargo" {
		t.Fatalf("update not applied: %+v", got)
	}
	if err := store.DeleteTerminal(ctx, "T3"); err != nil {
		t.Fatalf("DeleteTerminal: %v", err)
	}
	if err := store.UpdateTerminal(ctx, Terminal{Name: "T3"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update after delete: err = %v, want ErrNotFound", err)
	}
}

func TestReferenceLookups(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	airport, err := store.AirportByCode(ctx, "APW")
	if err != nil {
		t.Fatalf("AirportByCode: %v", err)
	}
	if airport.ICAOCode != "EHAW" || airport.Timezone != "Europe/Amsterdam" {
		t.Fatalf("airport fields wrong: %+v", airport)
	}

	airline, err := store.AirlineByCode(ctx, "KL")
	if err != nil {
		t.Fatalf("AirlineByCode: %v", err)
	}
	if airline.Callsign != "KLM" {
		t.Fatalf("airline fields wrong: %+v", airline)
	}

	ac, err := store.AircraftTypeByCode(ctx, "B77W")
	if err != nil {
		t.Fatalf("AircraftTypeByCode: %v", err)
	}
	if ac.SizeCode != "E" {
		t.Fatalf("aircraft fields wrong: %+v", ac)
	}

	pier, err := store.PierByName(ctx, "A")
	if err != nil {
		t.Fatalf("PierByName: %v", err)
	}
	if pier.Terminal != "T1" {
		t.Fatalf("pier fields wrong: %+v", pier)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	start := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 12, 17, 0, 0, 0, time.UTC)
	created, err := store.CreateMaintenance(ctx, MaintenanceRequest{
		StandName: "A12", StartDate: start, EndDate: end,
		Description: "apron resurfacing", RequestedBy: "ops",
	})
	if err != nil {
		t.Fatalf("CreateMaintenance: %v", err)
	}
	if created.Status != MaintenanceScheduled {
		t.Fatalf("default status = %s", created.Status)
	}

	byStand, err := store.MaintenanceByStand(ctx, "A12")
	if err != nil {
		t.Fatalf("MaintenanceByStand: %v", err)
	}
	if len(byStand) != 1 || byStand[0].ID != created.ID {
		t.Fatalf("byStand = %+v", byStand)
	}

	// Overlap query: a window touching only the first day still matches.
	window, err := store.MaintenanceInWindow(ctx,
		time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 10, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MaintenanceInWindow: %v", err)
	}
	if len(window) != 1 {
		t.Fatalf("window matched %d requests, want 1", len(window))
	}

	// A disjoint window matches nothing.
	none, err := store.MaintenanceInWindow(ctx,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MaintenanceInWindow disjoint: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("disjoint window matched %d requests", len(none))
	}

	created.Status = MaintenanceCompleted
	if err := store.UpdateMaintenance(ctx, *created); err != nil {
		t.Fatalf("UpdateMaintenance: %v", err)
	}
	byStand, _ = store.MaintenanceByStand(ctx, "A12")
	if byStand[0].Status != MaintenanceCompleted {
		t.Fatalf("status = %s", byStand[0].Status)
	}

	if err := store.DeleteMaintenance(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMaintenance: %v", err)
	}
	if err := store.DeleteMaintenance(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestOperationalSettings(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	setting, err := store.Setting(ctx, "turnaround_buffer_minutes")
	if err != nil {
		t.Fatalf("Setting: %v", err)
	}
	if setting.Value != "15" {
		t.Fatalf("value = %s", setting.Value)
	}

	if err := store.SetSetting(ctx, OperationalSetting{
		Key: "turnaround_buffer_minutes", Value: "20",
	}); err != nil {
		t.Fatalf("SetSetting upsert: %v", err)
	}
	setting, _ = store.Setting(ctx, "turnaround_buffer_minutes")
	if setting.Value != "20" {
		t.Fatalf("upsert not applied: %s", setting.Value)
	}

	all, err := store.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d settings, want 3", len(all))
	}
}

func TestAllStandsAndMaintenance(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	stands, err := store.AllStands(ctx)
	if err != nil {
		t.Fatalf("AllStands: %v", err)
	}
	if len(stands) != 6 {
		t.Fatalf("got %d stands, want 6", len(stands))
	}
	// Ordered by name across terminals.
	if stands[0].Name != "A12" || stands[5].Name != "C2" {
		t.Fatalf("ordering wrong: %s..%s", stands[0].Name, stands[5].Name)
	}

	maint, err := store.AllMaintenance(ctx)
	if err != nil {
		t.Fatalf("AllMaintenance: %v", err)
	}
	if len(maint) != 1 {
		t.Fatalf("got %d maintenance requests, want 1", len(maint))
	}
	if maint[0].StandName != "B3" {
		t.Fatalf("maintenance stand = %q, want B3", maint[0].StandName)
	}
}
