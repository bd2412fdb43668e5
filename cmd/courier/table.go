package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"courier/internal/api"
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
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// messageRows renders messages oldest first with local timestamps.
func messageRows(messages []api.Message) [][]string {
	rows := make([][]string, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, []string{
			time.Unix(msg.Time, 0).Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(msg.Priority),
			msg.Title,
			msg.Message,
			msg.ID,
		})
	}
	return rows
}

func renderMessageTable(messages []api.Message) string {
	return renderTable(
		[]string{"Time", "Pri", "Title", "Message", "ID"},
		messageRows(messages),
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func endpointRows(endpoints []api.Endpoint) [][]string {
	rows := make([][]string, 0, len(endpoints))
	for _, ep := range endpoints {
		channels := "-"
		if len(ep.Channels) > 0 {
			channels = strings.Join(ep.Channels, ", ")
		}
		rows = append(rows, []string{ep.Identity, ep.State, channels, ep.ConnectedAt, ep.LastAck})
	}
	return rows
}
