package dataset

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// UsageRow is one line of the Usage sheet.
type UsageRow struct {
	Period     string
	JobID      string
	RecordedAt string
}

// WorkbookSummary is what ReadWorkbook recovers from a usage workbook.
type WorkbookSummary struct {
	Fields map[string]string
	Usage  []UsageRow
	Jobs   int
}

// Used returns the Used figure from the summary sheet.
func (s WorkbookSummary) Used() int {
	n, _ := strconv.Atoi(strings.TrimSpace(s.Fields["Used"]))
	return n
}

// ReadWorkbook parses a workbook produced by WriteWorkbook.
func ReadWorkbook(r io.Reader) (WorkbookSummary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	out := WorkbookSummary{Fields: map[string]string{}}

	rows, err := f.GetRows(SheetSummary)
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("read %s: %w", SheetSummary, err)
	}
	for _, row := range rows {
		if len(row) >= 2 {
			out.Fields[row[0]] = row[1]
		}
	}

	rows, err = f.GetRows(SheetUsage)
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("read %s: %w", SheetUsage, err)
	}
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		u := UsageRow{Period: row[0], JobID: row[1]}
		if len(row) > 2 {
			u.RecordedAt = row[2]
		}
		out.Usage = append(out.Usage, u)
	}

	rows, err = f.GetRows(SheetJobs)
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("read %s: %w", SheetJobs, err)
	}
	if len(rows) > 1 {
		out.Jobs = len(rows) - 1
	}
	return out, nil
}
