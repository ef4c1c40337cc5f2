// Package importer drives a template-mapped spreadsheet import: strictly
// sequential per-row processing against the sync engine, accumulating a
// user-facing report instead of failing the batch.
package importer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pim-service/internal/catalog"
	"pim-service/internal/codec"
	"pim-service/internal/models"
	"pim-service/internal/resolver"
	"pim-service/internal/syncengine"
)

type Importer struct {
	engine *syncengine.Engine
	logger *logrus.Logger
}

func New(engine *syncengine.Engine, logger *logrus.Logger) *Importer {
	return &Importer{engine: engine, logger: logger}
}

// Run processes rows against a template mapping, one row at a time: row N+1
// starts only after row N's full sync completed, success or failure.
//
// A template without an item_no binding fails every row (hard precondition,
// counted in Errors). A row whose key cell is blank is soft-skipped: logged
// but counted in neither Success nor Errors. Sub-entity sync failures are
// logged as warnings while the row still counts as imported; the engine is
// best-effort by design.
//
// Cancellation is checked between rows; a cancelled run returns the report
// accumulated so far with Cancelled set.
func (imp *Importer) Run(ctx context.Context, rows []codec.Row, template *models.ImportTemplate) *models.ImportReport {
	report := &models.ImportReport{Logs: make([]string, 0, len(rows))}

	keyColumn, hasKey := catalog.NaturalKeyColumn(template.Mapping)

	for _, row := range rows {
		select {
		case <-ctx.Done():
			report.Cancelled = true
			report.Logs = append(report.Logs, "import cancelled")
			imp.logger.WithField("template", template.Name).Warn("import cancelled mid-run")
			return report
		default:
		}

		rowNum := row[codec.RowNumberKey]

		if !hasKey {
			report.Errors++
			report.Logs = append(report.Logs, fmt.Sprintf("row %s: template %q has no item number binding", rowNum, template.Name))
			continue
		}

		itemNo := row[keyColumn]
		if itemNo == "" {
			report.Skipped++
			report.Logs = append(report.Logs, fmt.Sprintf("row %s skipped: no item number", rowNum))
			continue
		}

		cs := resolver.Resolve(row, template.Mapping)
		outcome := imp.engine.SyncRow(ctx, cs, itemNo)

		if !outcome.Succeeded() {
			report.Errors++
			report.Logs = append(report.Logs, fmt.Sprintf("row %s (%s) failed: %v | row %v", rowNum, itemNo, outcome.ProductErr, rowContent(row)))
			continue
		}

		report.Success++
		if outcome.Created {
			report.Logs = append(report.Logs, fmt.Sprintf("row %s: created %s", rowNum, itemNo))
		} else {
			report.Logs = append(report.Logs, fmt.Sprintf("row %s: updated %s", rowNum, itemNo))
		}

		for _, sub := range outcome.SubErrors {
			report.Logs = append(report.Logs, fmt.Sprintf("row %s (%s) warning: %s failed: %v", rowNum, itemNo, sub.Entity, sub.Err))
		}
	}

	report.Logs = append(report.Logs, report.Summary())
	imp.logger.WithFields(logrus.Fields{
		"template": template.Name,
		"success":  report.Success,
		"errors":   report.Errors,
		"skipped":  report.Skipped,
	}).Info("import finished")

	return report
}

// rowContent renders the raw row for error logs, without the bookkeeping key.
func rowContent(row codec.Row) string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		if k == codec.RowNumberKey {
			continue
		}
		out[k] = v
	}
	return fmt.Sprintf("%v", out)
}
