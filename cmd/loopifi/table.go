package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kikiluvv/loopifi/internal/jobs"
	"github.com/kikiluvv/loopifi/internal/loops"
	"github.com/kikiluvv/loopifi/pkg/util"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func loopRecordsTable(records []loops.LoopRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(rec.Rank),
			strconv.FormatFloat(rec.Score, 'f', 3, 64),
			fmt.Sprintf("%d-%d", rec.StartFrame, rec.EndFrame),
			util.FormatSeconds(rec.StartSeconds),
			util.FormatSeconds(rec.Duration),
			rec.WebMLocation,
		})
	}
	return renderTable(
		[]string{"#", "Score", "Frames", "Start (s)", "Length (s)", "WebM"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func jobsTable(list []*jobs.Job) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			job.CreatedAt.Local().Format("2006-01-02 15:04"),
			job.Status,
			strconv.FormatFloat(job.Progress, 'f', 0, 64) + "%",
			fmt.Sprintf("%s-%s", util.FormatSeconds(job.StartSeconds), util.FormatSeconds(job.EndSeconds)),
			job.SourcePath,
		})
	}
	return renderTable(
		[]string{"ID", "Created", "Status", "Progress", "Interval", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func jobLoopsTable(job *jobs.Job) string {
	rows := make([][]string, 0, len(job.Loops))
	for _, l := range job.Loops {
		rows = append(rows, []string{
			strconv.Itoa(l.Position),
			strconv.FormatFloat(l.Score, 'f', 3, 64),
			fmt.Sprintf("%d-%d", l.StartFrame, l.EndFrame),
			util.FormatSeconds(l.StartSeconds),
			util.FormatSeconds(l.Duration),
			l.GIFLocation,
			l.WebMLocation,
			l.MP4Location,
		})
	}
	return renderTable(
		[]string{"#", "Score", "Frames", "Start (s)", "Length (s)", "GIF", "WebM", "MP4"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
