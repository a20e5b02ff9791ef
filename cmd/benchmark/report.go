package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
)

type row struct {
	Scenario   string        `json:"scenario"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Iterations int           `json:"iterations"`
	Updates    int64         `json:"updates"`
	Avg        time.Duration `json:"avg_ns"`
	Min        time.Duration `json:"min_ns"`
	P75        time.Duration `json:"p75_ns"`
	P99        time.Duration `json:"p99_ns"`
	Max        time.Duration `json:"max_ns"`
	Total      time.Duration `json:"total_ns"`
}

func measure(name string, s scenario, p profile) []row {
	rows := make([]row, 0, len(p.Widths)*len(p.Heights))
	for _, w := range p.Widths {
		for _, h := range p.Heights {
			b := s(w, h)
			tach := tachymeter.New(&tachymeter.Config{Size: p.Iterations})
			for i := 0; i < p.Iterations; i++ {
				start := time.Now()
				b.step(i)
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			rows = append(rows, row{
				Scenario:   name,
				Width:      w,
				Height:     h,
				Iterations: p.Iterations,
				Updates:    *b.updates,
				Avg:        calc.Time.Avg,
				Min:        calc.Time.Min,
				P75:        calc.Time.P75,
				P99:        calc.Time.P99,
				Max:        calc.Time.Max,
				Total:      calc.Time.Cumulative,
			})
		}
	}
	return rows
}

func renderScenario(w io.Writer, name string, rows []row) {
	tbl := table.NewWriter()
	tbl.SetTitle(name)
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	for _, r := range rows {
		tbl.AppendRow(table.Row{
			fmt.Sprintf("propagate: %d * %d", r.Width, r.Height),
			r.Avg,
			r.Min,
			r.P75,
			r.P99,
			r.Max,
		})
	}
	tbl.Render()
}

func renderSummary(w io.Writer, rows []row) {
	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"scenario", "size", "nTimes", "updates", "time", "updateRate"})
	for _, r := range rows {
		var rate float64
		if r.Total > 0 {
			rate = float64(r.Updates) / (float64(r.Total) / float64(time.Millisecond))
		}
		summary.Append([]string{
			r.Scenario,
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			humanize.Comma(int64(r.Iterations)),
			humanize.Comma(r.Updates),
			fmt.Sprint(r.Total),
			humanize.Comma(int64(rate)),
		})
	}
	summary.Render()
}

func writeTrace(path string, rows []row) error {
	data, err := jsoniter.ConfigFastest.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}
