package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/billbook/internal/fieldmap"
	"github.com/roach88/billbook/internal/record"
)

// View is the final state assertions are evaluated against.
type View struct {
	State map[record.Collection][]record.Object
	// Remote holds the backend rows in internal field names.
	Remote map[record.Collection][]record.Object
	Outbox []record.Mutation
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions runs every assertion and returns the failures in order.
func evaluateAssertions(assertions []Assertion, v View) []error {
	var errs []error
	for i, a := range assertions {
		if err := evaluateAssertion(a, v); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, v View) error {
	c := record.Collection(a.Collection)
	switch a.Type {
	case AssertState:
		return assertRecord(a, v.State[c])
	case AssertRemote:
		return assertRecord(a, v.Remote[c])
	case AssertStateCount:
		return assertCount(a, len(v.State[c]))
	case AssertRemoteCount:
		return assertCount(a, len(v.Remote[c]))
	case AssertOutboxCount:
		return assertCount(a, len(v.Outbox))
	case AssertStateOrder:
		return assertOrder(a, v.State[c])
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertRecord finds the record with a.ID and subset-matches a.Expect.
func assertRecord(a Assertion, rows []record.Object) error {
	var found record.Object
	for _, row := range rows {
		if row.ID() == a.ID {
			found = row
			break
		}
	}

	if a.Absent {
		if found != nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("no %s record %q", a.Collection, a.ID),
				Actual:   formatRecord(found),
			}
		}
		return nil
	}
	if found == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s record %q", a.Collection, a.ID),
			Actual:   fmt.Sprintf("not found among %d records", len(rows)),
		}
	}

	want, err := record.ObjectFromMap(orEmpty(a.Expect))
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	want = fieldmap.Normalize(record.Collection(a.Collection), want)

	for _, key := range want.SortedKeys() {
		got, ok := found[key]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s.%s = %s", a.ID, key, formatValue(want[key])),
				Actual:   "field missing",
			}
		}
		if !valuesEqual(got, want[key]) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s.%s = %s", a.ID, key, formatValue(want[key])),
				Actual:   formatValue(got),
			}
		}
	}
	return nil
}

func assertCount(a Assertion, got int) error {
	if got == a.Count {
		return nil
	}
	what := a.Collection
	if a.Type == AssertOutboxCount {
		what = "outbox"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s entries", a.Count, what),
		Actual:   fmt.Sprintf("%d", got),
	}
}

func assertOrder(a Assertion, rows []record.Object) error {
	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row.ID()
	}
	if strings.Join(got, ",") == strings.Join(a.IDs, ",") && len(got) == len(a.IDs) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%v", a.IDs),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// valuesEqual compares two values by their canonical encoding, so Int(14)
// and a Number holding 14 are equal.
func valuesEqual(a, b record.Value) bool {
	ab, err := record.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := record.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func formatValue(v record.Value) string {
	b, err := record.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func formatRecord(obj record.Object) string {
	return formatValue(obj)
}
