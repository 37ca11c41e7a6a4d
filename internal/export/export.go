// Package export writes a course plan with progress as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/plan"
	"github.com/p-n-ai/pai-planner/internal/progress"
)

// Sheet names.
const (
	PlanSheet   = "Plan"
	TopicsSheet = "Topics"
)

var (
	planHeader   = []any{"Week", "Day", "Type", "Description", "Duration", "Completed"}
	topicsHeader = []any{"Week", "Topic ID", "Title", "Resources", "Questions"}
)

// WritePlan writes weeks of c to w. statuses is keyed by week number and may
// be nil, in which case every activity is exported as not completed.
func WritePlan(w io.Writer, c course.Course, weeks []plan.WeeklyPlan, statuses map[int]progress.WeekStatus) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), PlanSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(TopicsSheet); err != nil {
		return fmt.Errorf("create topics sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	planRows := [][]any{planHeader}
	topicRows := [][]any{topicsHeader}
	for _, wk := range weeks {
		done := statuses[wk.WeekNumber].Completed
		for _, day := range wk.DailyActivities {
			for _, a := range day.Activities {
				planRows = append(planRows, []any{wk.WeekNumber, day.Day, a.Type, a.Description, a.Duration, yesNo(done[a.ID])})
			}
		}
		for _, t := range wk.Topics {
			titles := make([]string, 0, len(t.Resources))
			for _, r := range t.Resources {
				titles = append(titles, r.Title)
			}
			topicRows = append(topicRows, []any{wk.WeekNumber, plan.TopicID(t.Title), t.Title, strings.Join(titles, "; "), len(t.TestQuestions)})
		}
	}

	if err := writeRows(f, PlanSheet, planRows, bold); err != nil {
		return err
	}
	if err := writeRows(f, TopicsSheet, topicRows, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(PlanSheet, "D", "D", 50); err != nil {
		return err
	}
	if err := f.SetColWidth(TopicsSheet, "C", "D", 40); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: c.Subject + " study plan", Creator: "pai-planner"}); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
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
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
