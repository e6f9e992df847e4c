package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CSVHeader lists the per-run export columns.
var CSVHeader = []string{
	"offset",
	"agent_llm",
	"num_tasks",
	"num_simulations",
	"num_trials",
	"avg_reward",
	"pass_at_1",
	"success_rate",
	"avg_agent_cost",
}

func runRow(m RunMetrics) []any {
	return []any{
		m.OffsetDays,
		m.AgentLLM,
		m.NumTasks,
		m.NumSimulations,
		m.NumTrials,
		m.AvgReward,
		m.PassAt1,
		m.SuccessRate,
		m.AvgAgentCost,
	}
}

// WriteCSV writes one row per run.
func WriteCSV(w io.Writer, metrics []RunMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, m := range metrics {
		row := runRow(m)
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

const (
	sheetSummary = "Summary"
	sheetRuns    = "Runs"
	sheetTasks   = "Tasks"
)

// WriteXLSX writes a workbook with a per-offset summary sheet, a per-run
// sheet matching the CSV export, and a per-task sheet.
func WriteXLSX(path string, metrics []RunMetrics, tasks []TaskRate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for _, name := range []string{sheetRuns, sheetTasks} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	summary := [][]any{{"offset", "runs", "agent_llms", "num_simulations", "avg_reward", "pass_at_1", "success_rate", "avg_agent_cost", "reward_diff", "reward_diff_pct"}}
	for _, s := range Summarize(metrics) {
		row := []any{s.OffsetDays, s.Runs, strings.Join(s.AgentLLMs, ", "), s.NumSimulations, s.AvgReward, s.PassAt1, s.SuccessRate, s.AvgAgentCost}
		if s.HasBaseline {
			row = append(row, s.RewardDiff, s.RewardDiffPct)
		}
		summary = append(summary, row)
	}

	header := make([]any, len(CSVHeader))
	for i, h := range CSVHeader {
		header[i] = h
	}
	runs := [][]any{header}
	for _, m := range metrics {
		runs = append(runs, runRow(m))
	}

	taskRows := [][]any{{"offset", "agent_llm", "task_id", "trials", "successes", "avg_reward"}}
	for _, t := range tasks {
		taskRows = append(taskRows, []any{t.OffsetDays, t.AgentLLM, t.TaskID, t.Trials, t.Successes, t.AvgReward})
	}

	for sheet, rows := range map[string][][]any{sheetSummary: summary, sheetRuns: runs, sheetTasks: taskRows} {
		if err := writeRows(f, sheet, rows, bold); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return nil
}
