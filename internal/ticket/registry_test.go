package ticket

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tickets.csv"), filepath.Join(dir, "support_tickets.csv"))
	r.now = func() time.Time { return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC) }
	return r
}

func TestCreateVacationTicket(t *testing.T) {
	r := testRegistry(t)

	tk, err := r.CreateVacationTicket("1001", "2025-07-01", "2025-07-10", "annual", "")
	if err != nil {
		t.Fatalf("CreateVacationTicket: %v", err)
	}

	if tk.TicketID != "VT2025001" {
		t.Errorf("TicketID = %q, want VT2025001", tk.TicketID)
	}
	if tk.Status != StatusPending {
		t.Errorf("Status = %q, want pending", tk.Status)
	}
	// days_count keeps the start-minus-end orientation: -8 for this range.
	if tk.DaysCount != -8 {
		t.Errorf("DaysCount = %d, want -8", tk.DaysCount)
	}
	if tk.RequestDate != "2025-06-15" {
		t.Errorf("RequestDate = %q, want 2025-06-15", tk.RequestDate)
	}
}

func TestCreateVacationTicket_SequentialIDs(t *testing.T) {
	r := testRegistry(t)

	seen := make(map[string]bool)
	want := []string{"VT2025001", "VT2025002", "VT2025003"}
	for i, wantID := range want {
		tk, err := r.CreateVacationTicket("1001", "2025-07-01", "2025-07-05", "annual", "")
		if err != nil {
			t.Fatalf("ticket %d: %v", i, err)
		}
		if tk.TicketID != wantID {
			t.Errorf("ticket %d ID = %q, want %q", i, tk.TicketID, wantID)
		}
		if seen[tk.TicketID] {
			t.Errorf("duplicate ticket ID %q", tk.TicketID)
		}
		seen[tk.TicketID] = true
	}
}

func TestCreateVacationTicket_MalformedLastIDFallsBackToTimestamp(t *testing.T) {
	r := testRegistry(t)

	rows := [][]string{{"BROKEN", "1001", "annual", "2025-07-01", "2025-07-02", "0", "pending", "", "2025-06-01", "", ""}}
	if err := r.vacations.WriteAll(rows); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	tk, err := r.CreateVacationTicket("1001", "2025-07-01", "2025-07-05", "annual", "")
	if err != nil {
		t.Fatalf("CreateVacationTicket: %v", err)
	}
	if tk.TicketID != "VT20250615103000" {
		t.Errorf("TicketID = %q, want timestamp fallback VT20250615103000", tk.TicketID)
	}
}

func TestCreateVacationTicket_BadDate(t *testing.T) {
	r := testRegistry(t)

	_, err := r.CreateVacationTicket("1001", "07/01/2025", "2025-07-10", "annual", "")
	if !errors.Is(err, ErrBadDate) {
		t.Fatalf("err = %v, want ErrBadDate", err)
	}
}

func TestCreateSupportTicket(t *testing.T) {
	r := testRegistry(t)
	r.newID = func() string { return "a1b2c3d4-e5f6-7890-abcd-ef1234567890" }

	tk, err := r.CreateSupportTicket("1001", "مشكلة في النظام", "لا يمكنني الدخول")
	if err != nil {
		t.Fatalf("CreateSupportTicket: %v", err)
	}
	if tk.TicketID != "ST-A1B2C3D4" {
		t.Errorf("TicketID = %q, want ST-A1B2C3D4", tk.TicketID)
	}
	if tk.Status != StatusOpen {
		t.Errorf("Status = %q, want open", tk.Status)
	}
	if tk.CreatedAt != "2025-06-15 10:30:00" {
		t.Errorf("CreatedAt = %q", tk.CreatedAt)
	}
}

func TestCreateSupportTicket_UniqueIDs(t *testing.T) {
	r := testRegistry(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		tk, err := r.CreateSupportTicket("1001", "s", "d")
		if err != nil {
			t.Fatalf("ticket %d: %v", i, err)
		}
		if !strings.HasPrefix(tk.TicketID, "ST-") || len(tk.TicketID) != 11 {
			t.Fatalf("ticket ID %q does not match ST-<8 hex>", tk.TicketID)
		}
		if seen[tk.TicketID] {
			t.Fatalf("duplicate ticket ID %q", tk.TicketID)
		}
		seen[tk.TicketID] = true
	}
}

func TestUpdateVacationStatus(t *testing.T) {
	r := testRegistry(t)

	tk, err := r.CreateVacationTicket("1001", "2025-07-01", "2025-07-05", "annual", "initial note")
	if err != nil {
		t.Fatalf("CreateVacationTicket: %v", err)
	}

	if err := r.UpdateVacationStatus(tk.TicketID, StatusApproved, "2001", ""); err != nil {
		t.Fatalf("UpdateVacationStatus: %v", err)
	}

	all, err := r.AllVacationTickets()
	if err != nil {
		t.Fatalf("AllVacationTickets: %v", err)
	}
	got := all[0]
	if got.Status != StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if got.ManagerID != "2001" {
		t.Errorf("ManagerID = %q, want 2001", got.ManagerID)
	}
	if got.ResponseDate != "2025-06-15" {
		t.Errorf("ResponseDate = %q, want 2025-06-15", got.ResponseDate)
	}
	// Empty notes leave the original note in place.
	if got.Notes != "initial note" {
		t.Errorf("Notes = %q, want initial note", got.Notes)
	}
}

func TestUpdateVacationStatus_NotFound(t *testing.T) {
	r := testRegistry(t)

	err := r.UpdateVacationStatus("VT2025999", StatusApproved, "2001", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCloseSupportTicket(t *testing.T) {
	r := testRegistry(t)

	tk, err := r.CreateSupportTicket("1001", "s", "d")
	if err != nil {
		t.Fatalf("CreateSupportTicket: %v", err)
	}

	if err := r.CloseSupportTicket(tk.TicketID); err != nil {
		t.Fatalf("CloseSupportTicket: %v", err)
	}

	all, err := r.AllSupportTickets()
	if err != nil {
		t.Fatalf("AllSupportTickets: %v", err)
	}
	if all[0].Status != StatusClosed {
		t.Errorf("Status = %q, want closed", all[0].Status)
	}

	if err := r.CloseSupportTicket("ST-DEADBEEF"); !errors.Is(err, ErrNotFound) {
		t.Errorf("closing unknown ticket: err = %v, want ErrNotFound", err)
	}
}

func TestEmployeeTickets(t *testing.T) {
	r := testRegistry(t)

	if _, err := r.CreateVacationTicket("1001", "2025-07-01", "2025-07-05", "annual", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateVacationTicket("1002", "2025-08-01", "2025-08-05", "sick", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateVacationTicket("1001", "2025-09-01", "2025-09-05", "annual", ""); err != nil {
		t.Fatal(err)
	}

	got, err := r.EmployeeTickets("1001")
	if err != nil {
		t.Fatalf("EmployeeTickets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tickets, want 2", len(got))
	}
	// File order is preserved.
	if got[0].StartDate != "2025-07-01" || got[1].StartDate != "2025-09-01" {
		t.Errorf("tickets out of file order: %v", got)
	}

	none, err := r.EmployeeTickets("9999")
	if err != nil {
		t.Fatalf("EmployeeTickets: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d tickets for unknown employee, want 0", len(none))
	}
}
