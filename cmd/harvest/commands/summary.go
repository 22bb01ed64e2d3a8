package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/sink"
)

func printSummary(w io.Writer, res *harvest.Result, report sink.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Harvest summary")
	t.AppendRows([]table.Row{
		{"Search URL", res.SearchURL},
		{"Advisory entries", res.Advisory},
		{"Attempted", res.Attempted},
		{"Recorded", len(res.Records)},
		{"Partial (no title)", res.Partial},
		{"Failed", res.Failed},
		{"Listing exhausted", exhaustedText(res)},
		{"Duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Second).String()},
	})
	t.AppendSeparator()
	for _, o := range report.Outcomes() {
		t.AppendRow(table.Row{"Output " + o.Format, outcomeText(o)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func exhaustedText(res *harvest.Result) string {
	if !res.Exhausted {
		return "no"
	}
	return fmt.Sprintf("at index %d", res.StoppedAt)
}

func outcomeText(o sink.Outcome) string {
	switch {
	case o.Err != nil:
		return "failed: " + o.Err.Error()
	case o.Skipped && o.Path == "":
		return "disabled"
	case o.Skipped:
		return "nothing to save"
	default:
		return o.Path
	}
}
