package csvio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/billbook/internal/record"
)

// ParseCSV reads r into records keyed by the header line. Blank lines are
// skipped; short rows leave the trailing keys absent and extra cells are
// dropped.
func ParseCSV(r io.Reader) ([]record.Object, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var header []string
	rows := []record.Object{}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := splitLine(line)
		if header == nil {
			header = cells
			if len(header) > 0 {
				header[0] = strings.TrimPrefix(header[0], "\ufeff")
			}
			continue
		}
		row := make(record.Object, len(header))
		for i, name := range header {
			if i >= len(cells) || name == "" {
				continue
			}
			row[name] = record.String(cells[i])
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func splitLine(line string) []string {
	cells := strings.Split(line, ",")
	for i, c := range cells {
		c = strings.TrimSpace(c)
		c = strings.TrimPrefix(c, `"`)
		c = strings.TrimSuffix(c, `"`)
		cells[i] = c
	}
	return cells
}
