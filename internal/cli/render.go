package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
	"github.com/rzpsarthak13/recordstore/internal/registry"
)

func (a *app) json() bool { return a.output == "json" }

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func (a *app) renderEvents(w io.Writer, rows []event.AlarmEvent) error {
	if a.json() {
		if rows == nil {
			rows = []event.AlarmEvent{}
		}
		return renderJSON(w, rows)
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"uuid", "name", "timestamp", "status_icon", "code", "note"})
	for _, e := range rows {
		code, note := "NULL", "NULL"
		if e.Code != nil {
			code = strconv.FormatInt(*e.Code, 10)
		}
		if e.Note != nil {
			note = *e.Note
		}
		t.AppendRow(table.Row{e.UUID, e.Name, e.Timestamp, e.Status, code, note})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func (a *app) renderKeys(w io.Writer, keys []int64) error {
	if a.json() {
		if keys == nil {
			keys = []int64{}
		}
		return renderJSON(w, keys)
	}
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"uuid"})
	for _, k := range keys {
		t.AppendRow(table.Row{k})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(keys))
	return nil
}

// renderScalar prints an aggregate result; a nil value prints as NULL.
func (a *app) renderScalar(w io.Writer, fn core.AggregateFunc, v any) error {
	if a.json() {
		return renderJSON(w, map[string]any{"aggregate": string(fn), "value": v})
	}
	if v == nil {
		v = "NULL"
	}
	t := newTable(w)
	t.AppendHeader(table.Row{string(fn)})
	t.AppendRow(table.Row{v})
	t.Render()
	return nil
}

func (a *app) renderRecord(w io.Writer, record map[string]interface{}) error {
	if a.json() {
		return renderJSON(w, record)
	}
	cols := make([]string, 0, len(record))
	for c := range record {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	t := newTable(w)
	t.AppendHeader(table.Row{"column", "value"})
	for _, c := range cols {
		v := record[c]
		if v == nil {
			v = "NULL"
		}
		t.AppendRow(table.Row{c, v})
	}
	t.Render()
	return nil
}

func (a *app) renderHistory(w io.Writer, events []*core.ChangeEvent) error {
	if a.json() {
		if events == nil {
			events = []*core.ChangeEvent{}
		}
		return renderJSON(w, events)
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"id", "operation", "key", "timestamp", "retries"})
	for _, e := range events {
		t.AppendRow(table.Row{e.ID, e.Operation, e.Key, e.Timestamp.Format(time.RFC3339Nano), e.RetryCount})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(events))
	return nil
}

type tableInfo struct {
	Name       string     `json:"name"`
	Columns    int        `json:"columns"`
	AutoCreate bool       `json:"auto_create"`
	Publish    bool       `json:"publish"`
	Created    bool       `json:"created"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (a *app) renderTables(w io.Writer, tables []*registry.TableMetadata) error {
	infos := make([]tableInfo, 0, len(tables))
	for _, md := range tables {
		infos = append(infos, tableInfo{
			Name:       md.TableName,
			Columns:    len(md.Descriptor.Columns),
			AutoCreate: md.Config.AutoCreate,
			Publish:    md.Config.Publish,
			Created:    md.Exists,
			CreatedAt:  md.CreatedAt,
		})
	}
	if a.json() {
		return renderJSON(w, infos)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"table", "columns", "auto_create", "publish", "created_at"})
	for _, info := range infos {
		created := "-"
		if info.CreatedAt != nil {
			created = info.CreatedAt.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{info.Name, info.Columns, info.AutoCreate, info.Publish, created})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d tables)\n", len(infos))
	return nil
}
