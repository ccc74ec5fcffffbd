// Package vacation maintains per-employee leave balances on top of the
// CSV record store.
package vacation

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mohammed-elhaj/hr-bot/internal/store"
)

// ErrNotFound is returned when no account exists for an employee ID.
var ErrNotFound = errors.New("employee not found")

// ErrBadEmployeeID is returned when an employee ID is not numeric.
// Account keys are integers; anything else cannot match a row.
var ErrBadEmployeeID = errors.New("employee id must be numeric")

// Columns is the header of the vacation accounts table.
var Columns = []string{
	"employee_id", "name", "position", "department",
	"annual_balance", "used_days", "remaining_balance", "last_updated",
}

// Account is one row of the vacation accounts table.
type Account struct {
	EmployeeID       int     `json:"employee_id"`
	Name             string  `json:"name"`
	Position         string  `json:"position"`
	Department       string  `json:"department"`
	AnnualBalance    float64 `json:"annual_balance"`
	UsedDays         float64 `json:"used_days"`
	RemainingBalance float64 `json:"remaining_balance"`
	LastUpdated      string  `json:"last_updated"`
}

// Ledger reads and mutates vacation accounts.
type Ledger struct {
	table *store.Table
	now   func() time.Time
}

// NewLedger creates a Ledger over the vacations table at path.
func NewLedger(path string) *Ledger {
	return &Ledger{
		table: store.NewTable(path, Columns),
		now:   time.Now,
	}
}

// CheckBalance returns the account for the given employee ID.
// Returns ErrBadEmployeeID for non-numeric IDs and ErrNotFound on a miss.
func (l *Ledger) CheckBalance(employeeID string) (Account, error) {
	id, err := strconv.Atoi(employeeID)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %q", ErrBadEmployeeID, employeeID)
	}

	rows, err := l.table.ReadAll()
	if err != nil {
		return Account{}, err
	}

	for _, row := range rows {
		acc, err := parseAccount(row)
		if err != nil {
			return Account{}, err
		}
		if acc.EmployeeID == id {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

// UpdateBalance adds daysUsed to the employee's used days, subtracts it
// from the remaining balance, and stamps last_updated with today's date.
// The remaining balance is allowed to go negative; approving more leave
// than an employee has is a policy matter, not a storage one.
func (l *Ledger) UpdateBalance(employeeID string, daysUsed float64) error {
	id, err := strconv.Atoi(employeeID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadEmployeeID, employeeID)
	}

	rows, err := l.table.ReadAll()
	if err != nil {
		return err
	}

	found := false
	for i, row := range rows {
		acc, err := parseAccount(row)
		if err != nil {
			return err
		}
		if acc.EmployeeID != id {
			continue
		}
		acc.UsedDays += daysUsed
		acc.RemainingBalance -= daysUsed
		acc.LastUpdated = l.now().Format("2006-01-02")
		rows[i] = acc.row()
		found = true
		break
	}
	if !found {
		return ErrNotFound
	}

	return l.table.WriteAll(rows)
}

func parseAccount(row []string) (Account, error) {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return Account{}, fmt.Errorf("parsing employee_id %q: %w", row[0], err)
	}
	annual, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return Account{}, fmt.Errorf("parsing annual_balance for %d: %w", id, err)
	}
	used, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return Account{}, fmt.Errorf("parsing used_days for %d: %w", id, err)
	}
	remaining, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return Account{}, fmt.Errorf("parsing remaining_balance for %d: %w", id, err)
	}
	return Account{
		EmployeeID:       id,
		Name:             row[1],
		Position:         row[2],
		Department:       row[3],
		AnnualBalance:    annual,
		UsedDays:         used,
		RemainingBalance: remaining,
		LastUpdated:      row[7],
	}, nil
}

func (a Account) row() []string {
	return []string{
		strconv.Itoa(a.EmployeeID),
		a.Name,
		a.Position,
		a.Department,
		formatDays(a.AnnualBalance),
		formatDays(a.UsedDays),
		formatDays(a.RemainingBalance),
		a.LastUpdated,
	}
}

func formatDays(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
