/*
Package generic provides the domain-neutral building blocks of the timesheet engine.

PURPOSE:
  Calendar dates, periods and their recurrence, hour quantities, errors and
  the persistence/clock collaborators. Nothing here knows what a timesheet
  cycle is; the timesheet package composes these pieces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of hours (decimal, no float drift when summing)
  - OwnerID: Whose timesheet a record belongs to

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Owner IDs are not interchangeable with other strings
  3. Determinism: "today" always comes from an injected Clock

SEE ALSO:
  - time.go: TimePoint, workday helpers, Clock
  - period.go: Period and Recurrence
  - store.go: KVStore and ReminderLog
*/
package generic

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours Unit = "hours"
)

// MaxHoursPerDay bounds a single day's entry.
var MaxHoursPerDay = decimal.NewFromInt(24)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func Hours(value float64) Amount { return NewAmount(value, UnitHours) }

func HoursFromDecimal(d decimal.Decimal) Amount { return Amount{Value: d, Unit: UnitHours} }

func ZeroHours() Amount { return Amount{Value: decimal.Zero, Unit: UnitHours} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// ValidDailyHours reports whether a is an acceptable single-day entry: [0, 24].
func (a Amount) ValidDailyHours() bool {
	return !a.Value.IsNegative() && !a.Value.GreaterThan(MaxHoursPerDay)
}

// MarshalJSON writes the bare number; the unit is implied by context.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Value.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*a = HoursFromDecimal(d)
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OwnerID identifies whose timesheet a cycle collection belongs to
// (an engineer in the staffing back office).
type OwnerID string
