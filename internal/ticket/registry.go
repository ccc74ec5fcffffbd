// Package ticket issues vacation-request and support tickets and tracks
// their status in the CSV record store. The two ticket kinds have separate
// schemas and live in separate tables, each owned by its own registry.
package ticket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-elhaj/hr-bot/internal/store"
)

// ErrNotFound is returned when no ticket exists for a given ID.
var ErrNotFound = errors.New("ticket not found")

// ErrBadDate is returned when a request date is not in YYYY-MM-DD form.
var ErrBadDate = errors.New("invalid date")

const dateLayout = "2006-01-02"

// Vacation ticket statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Support ticket statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// VacationColumns is the header of the vacation tickets table.
var VacationColumns = []string{
	"ticket_id", "employee_id", "request_type", "start_date", "end_date",
	"days_count", "status", "manager_id", "request_date", "response_date", "notes",
}

// SupportColumns is the header of the support tickets table.
var SupportColumns = []string{
	"ticket_id", "employee_id", "summary", "description",
	"status", "created_at", "updated_at",
}

// VacationTicket is one row of the vacation tickets table.
type VacationTicket struct {
	TicketID     string `json:"ticket_id"`
	EmployeeID   string `json:"employee_id"`
	RequestType  string `json:"request_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DaysCount    int    `json:"days_count"`
	Status       string `json:"status"`
	ManagerID    string `json:"manager_id"`
	RequestDate  string `json:"request_date"`
	ResponseDate string `json:"response_date"`
	Notes        string `json:"notes"`
}

// SupportTicket is one row of the support tickets table.
type SupportTicket struct {
	TicketID    string `json:"ticket_id"`
	EmployeeID  string `json:"employee_id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Registry manages both ticket tables.
type Registry struct {
	vacations *store.Table
	support   *store.Table
	now       func() time.Time
	newID     func() string
}

// NewRegistry creates a Registry over the two ticket tables.
func NewRegistry(vacationsPath, supportPath string) *Registry {
	return &Registry{
		vacations: store.NewTable(vacationsPath, VacationColumns),
		support:   store.NewTable(supportPath, SupportColumns),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateVacationTicket appends a pending vacation request.
//
// The day count is computed as (start - end) + 1, which yields a negative
// value for forward-dated ranges. Existing ticket data and downstream
// consumers expect this orientation, so it is kept as-is.
func (r *Registry) CreateVacationTicket(employeeID, startDate, endDate, requestType, notes string) (VacationTicket, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return VacationTicket{}, fmt.Errorf("%w: start_date %q", ErrBadDate, startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return VacationTicket{}, fmt.Errorf("%w: end_date %q", ErrBadDate, endDate)
	}

	id, err := r.nextVacationID()
	if err != nil {
		return VacationTicket{}, err
	}

	tk := VacationTicket{
		TicketID:    id,
		EmployeeID:  employeeID,
		RequestType: requestType,
		StartDate:   startDate,
		EndDate:     endDate,
		DaysCount:   int(start.Sub(end).Hours()/24) + 1,
		Status:      StatusPending,
		RequestDate: r.now().Format(dateLayout),
		Notes:       notes,
	}

	if err := r.vacations.Append(tk.row()); err != nil {
		return VacationTicket{}, err
	}
	return tk, nil
}

// nextVacationID parses the numeric suffix of the last row's ticket ID and
// increments it. An empty or malformed table falls back to a timestamp ID.
func (r *Registry) nextVacationID() (string, error) {
	year := r.now().Year()

	rows, err := r.vacations.ReadAll()
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("VT%d001", year), nil
	}

	last := rows[len(rows)-1][0]
	if len(last) < 3 {
		return r.timestampID(), nil
	}
	seq, err := strconv.Atoi(last[len(last)-3:])
	if err != nil {
		return r.timestampID(), nil
	}
	return fmt.Sprintf("VT%d%03d", year, seq+1), nil
}

func (r *Registry) timestampID() string {
	return "VT" + r.now().Format("20060102150405")
}

// CreateSupportTicket appends an open support ticket with an ST-prefixed
// random ID.
func (r *Registry) CreateSupportTicket(employeeID, summary, description string) (SupportTicket, error) {
	now := r.now().Format("2006-01-02 15:04:05")
	tk := SupportTicket{
		TicketID:    r.supportID(),
		EmployeeID:  employeeID,
		Summary:     summary,
		Description: description,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.support.Append(tk.row()); err != nil {
		return SupportTicket{}, err
	}
	return tk, nil
}

// supportID returns "ST-" plus the first 8 hex characters of a fresh UUID,
// uppercased.
func (r *Registry) supportID() string {
	hex := strings.ReplaceAll(r.newID(), "-", "")
	return "ST-" + strings.ToUpper(hex[:8])
}

// UpdateVacationStatus sets the status, manager, and response date of the
// ticket with the given ID. Notes are replaced only when non-empty.
func (r *Registry) UpdateVacationStatus(ticketID, status, managerID, notes string) error {
	rows, err := r.vacations.ReadAll()
	if err != nil {
		return err
	}

	found := false
	for i, row := range rows {
		if row[0] != ticketID {
			continue
		}
		tk, err := parseVacation(row)
		if err != nil {
			return err
		}
		tk.Status = status
		tk.ManagerID = managerID
		tk.ResponseDate = r.now().Format(dateLayout)
		if notes != "" {
			tk.Notes = notes
		}
		rows[i] = tk.row()
		found = true
		break
	}
	if !found {
		return ErrNotFound
	}
	return r.vacations.WriteAll(rows)
}

// CloseSupportTicket marks the support ticket closed and bumps updated_at.
func (r *Registry) CloseSupportTicket(ticketID string) error {
	rows, err := r.support.ReadAll()
	if err != nil {
		return err
	}

	found := false
	for i, row := range rows {
		if row[0] != ticketID {
			continue
		}
		tk := parseSupport(row)
		tk.Status = StatusClosed
		tk.UpdatedAt = r.now().Format("2006-01-02 15:04:05")
		rows[i] = tk.row()
		found = true
		break
	}
	if !found {
		return ErrNotFound
	}
	return r.support.WriteAll(rows)
}

// EmployeeTickets returns the employee's vacation tickets in file order.
func (r *Registry) EmployeeTickets(employeeID string) ([]VacationTicket, error) {
	rows, err := r.vacations.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []VacationTicket
	for _, row := range rows {
		if row[1] != employeeID {
			continue
		}
		tk, err := parseVacation(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tk)
	}
	return out, nil
}

// AllVacationTickets returns every vacation ticket in file order.
func (r *Registry) AllVacationTickets() ([]VacationTicket, error) {
	rows, err := r.vacations.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]VacationTicket, 0, len(rows))
	for _, row := range rows {
		tk, err := parseVacation(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tk)
	}
	return out, nil
}

// AllSupportTickets returns every support ticket in file order.
func (r *Registry) AllSupportTickets() ([]SupportTicket, error) {
	rows, err := r.support.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]SupportTicket, 0, len(rows))
	for _, row := range rows {
		out = append(out, parseSupport(row))
	}
	return out, nil
}

func (t VacationTicket) row() []string {
	return []string{
		t.TicketID, t.EmployeeID, t.RequestType, t.StartDate, t.EndDate,
		strconv.Itoa(t.DaysCount), t.Status, t.ManagerID, t.RequestDate,
		t.ResponseDate, t.Notes,
	}
}

func parseVacation(row []string) (VacationTicket, error) {
	days, err := strconv.Atoi(row[5])
	if err != nil {
		return VacationTicket{}, fmt.Errorf("parsing days_count for %s: %w", row[0], err)
	}
	return VacationTicket{
		TicketID:     row[0],
		EmployeeID:   row[1],
		RequestType:  row[2],
		StartDate:    row[3],
		EndDate:      row[4],
		DaysCount:    days,
		Status:       row[6],
		ManagerID:    row[7],
		RequestDate:  row[8],
		ResponseDate: row[9],
		Notes:        row[10],
	}, nil
}

func (t SupportTicket) row() []string {
	return []string{
		t.TicketID, t.EmployeeID, t.Summary, t.Description,
		t.Status, t.CreatedAt, t.UpdatedAt,
	}
}

func parseSupport(row []string) SupportTicket {
	return SupportTicket{
		TicketID:    row[0],
		EmployeeID:  row[1],
		Summary:     row[2],
		Description: row[3],
		Status:      row[4],
		CreatedAt:   row[5],
		UpdatedAt:   row[6],
	}
}
