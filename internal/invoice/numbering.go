package invoice

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberPrefix returns the document number prefix for kind.
func NumberPrefix(kind Kind) string {
	if kind == KindQuote {
		return "AN"
	}
	return "RE"
}

// NextNumber returns the next free number for kind in year, in the form
// PREFIX-YYYY-NNN. Numbers that do not follow the pattern are ignored.
func NextNumber(existing []Document, kind Kind, year int) string {
	prefix := fmt.Sprintf("%s-%04d-", NumberPrefix(kind), year)
	highest := 0
	for _, d := range existing {
		if d.Kind != kind || !strings.HasPrefix(d.Number, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(d.Number, prefix))
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}
