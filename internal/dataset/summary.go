// Package dataset builds the per-account usage workbook (xlsx) and reads it back.
package dataset

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/akiwumi/typemyaudio/internal/actionable"
	"github.com/akiwumi/typemyaudio/internal/aggregator"
	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const (
	SheetSummary   = "Summary"
	SheetUsage     = "Usage"
	SheetJobs      = "Jobs"
	SheetPurchases = "Token purchases"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Source is the read side of the store a report needs.
type Source interface {
	ListUsage(ctx context.Context, accountID string) ([]types.UsageRecord, error)
	ListTokenPurchases(ctx context.Context, accountID string) ([]types.TokenPurchase, error)
	ListJobs(ctx context.Context, accountID string) ([]types.Job, error)
}

type Summarizer interface {
	Usage(ctx context.Context, accountID string) (quota.Summary, error)
}

type Report struct {
	AccountID   string
	GeneratedAt time.Time
	Summary     quota.Summary
	Insight     aggregator.Insight
	Card        actionable.ActionCard
	Usage       []types.UsageRecord
	Purchases   []types.TokenPurchase
	Jobs        []types.Job
}

func BuildReport(ctx context.Context, src Source, ledger Summarizer, accountID string, now time.Time) (Report, error) {
	sum, err := ledger.Usage(ctx, accountID)
	if err != nil {
		return Report{}, err
	}
	usage, err := src.ListUsage(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("list usage: %w", err)
	}
	purchases, err := src.ListTokenPurchases(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("list purchases: %w", err)
	}
	jobs, err := src.ListJobs(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("list jobs: %w", err)
	}

	ins := aggregator.Aggregate(usage, jobs, purchases)
	return Report{
		AccountID:   accountID,
		GeneratedAt: now.UTC(),
		Summary:     sum,
		Insight:     ins,
		Card:        actionable.Generate(sum, ins),
		Usage:       usage,
		Purchases:   purchases,
		Jobs:        jobs,
	}, nil
}

func limitText(n int) any {
	if n < 0 {
		return "unlimited"
	}
	return n
}

// WriteWorkbook renders rep as an xlsx workbook into w.
func WriteWorkbook(w io.Writer, rep Report) error {
	log := logger.New().WithField("component", "dataset.report").WithField("account_id", rep.AccountID)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetUsage, SheetJobs, SheetPurchases} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("style: %w", err)
	}

	summary := [][]any{
		{"Account", rep.AccountID},
		{"Generated", rep.GeneratedAt.Format(time.RFC3339)},
		{"Tier", string(rep.Summary.Tier)},
		{"Used", rep.Summary.Used},
		{"Limit", limitText(rep.Summary.Limit)},
		{"Purchased tokens", rep.Summary.PurchasedTokens},
		{"Remaining", limitText(rep.Summary.Remaining)},
		{"Total words", rep.Insight.TotalWords},
		{"Failure rate", rep.Insight.FailureRate},
		{"Busiest month", rep.Insight.BusiestMonth},
		{"Most used language", rep.Insight.MostUsedLanguage},
		{"Insight", rep.Card.Insight},
		{"Recommended action", rep.Card.Action},
	}
	if err := writeRows(f, SheetSummary, nil, summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return err
	}

	usage := make([][]any, 0, len(rep.Usage))
	for _, u := range rep.Usage {
		usage = append(usage, []any{u.PeriodStart.Format("2006-01"), u.JobID, u.CreatedAt.Format(time.RFC3339)})
	}
	if err := writeRows(f, SheetUsage, []any{"Period", "Job ID", "Recorded at"}, usage); err != nil {
		return err
	}

	jobs := make([][]any, 0, len(rep.Jobs))
	for _, j := range rep.Jobs {
		jobs = append(jobs, []any{j.ID, j.Title, string(j.Status), j.DetectedLanguageName, j.WordCount, j.CreatedAt.Format(time.RFC3339), j.ErrorMessage})
	}
	if err := writeRows(f, SheetJobs, []any{"Job ID", "Title", "Status", "Language", "Words", "Created", "Error"}, jobs); err != nil {
		return err
	}

	purchases := make([][]any, 0, len(rep.Purchases))
	for _, p := range rep.Purchases {
		purchases = append(purchases, []any{p.PaymentID, p.Quantity, p.Provider, p.CreatedAt.Format(time.RFC3339)})
	}
	if err := writeRows(f, SheetPurchases, []any{"Payment ID", "Quantity", "Provider", "Purchased at"}, purchases); err != nil {
		return err
	}

	for _, sheet := range []string{SheetUsage, SheetJobs, SheetPurchases} {
		if err := f.SetCellStyle(sheet, "A1", "G1", bold); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "B", 24); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	log.WithField("jobs", len(rep.Jobs)).Info("usage workbook written")
	return nil
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any) error {
	row := 1
	if header != nil {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
		row++
	}
	for _, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		r := r
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, row, err)
		}
		row++
	}
	return nil
}
