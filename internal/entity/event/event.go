// Package event defines the alarm event entity and its table mapping.
package event

import (
	"strings"
	"time"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/keygen"
)

// TableName is the SQL table holding alarm events.
const TableName = "event"

// AlarmEvent is one alarm occurrence.
type AlarmEvent struct {
	// UUID is the primary key, assigned once when the event is made.
	UUID int64 `json:"uuid"`

	// Name identifies the alarm.
	Name int64 `json:"name"`

	// Timestamp is the event time in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`

	// Status is the status icon code.
	Status int64 `json:"status_icon"`

	Code *int64  `json:"code,omitempty"`
	Note *string `json:"note,omitempty"`
}

// Column enumerates the event columns in declaration order.
type Column int

const (
	ColumnUUID Column = iota
	ColumnName
	ColumnTimestamp
	ColumnStatus
	ColumnCode
	ColumnNote
)

var columns = []core.Column{
	{Name: "uuid", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
	{Name: "name", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
	{Name: "timestamp", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
	{Name: "status_icon", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
	{Name: "code", Type: core.TypeInteger},
	{Name: "note", Type: core.TypeText},
}

// Descriptor returns the event table metadata. Each call returns a new copy.
func Descriptor() *core.TableDescriptor {
	cols := make([]core.Column, len(columns))
	copy(cols, columns)
	return &core.TableDescriptor{
		Name:    TableName,
		Columns: cols,
		Keys:    []string{"uuid"},
	}
}

// Column returns the descriptor column for c.
func (c Column) Column() *core.Column {
	col := columns[c]
	return &col
}

// String returns the SQL column name.
func (c Column) String() string { return columns[c].Name }

// ParseColumn resolves a column by its SQL name ("status" is accepted
// for status_icon).
func ParseColumn(name string) (Column, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "status" {
		return ColumnStatus, true
	}
	for i, c := range columns {
		if c.Name == name {
			return Column(i), true
		}
	}
	return 0, false
}

// Option overrides a field of a newly made event.
type Option func(*AlarmEvent)

// WithName sets the alarm name.
func WithName(name int64) Option {
	return func(e *AlarmEvent) { e.Name = name }
}

// WithStatus sets the status icon.
func WithStatus(status int64) Option {
	return func(e *AlarmEvent) { e.Status = status }
}

// WithTimestamp overrides the event time (milliseconds).
func WithTimestamp(ms int64) Option {
	return func(e *AlarmEvent) { e.Timestamp = ms }
}

// WithCode sets the optional code.
func WithCode(code int64) Option {
	return func(e *AlarmEvent) { e.Code = &code }
}

// WithNote sets the optional note.
func WithNote(note string) Option {
	return func(e *AlarmEvent) { e.Note = &note }
}

// Factory makes events with fresh keys and timestamps.
type Factory struct {
	Keys keygen.Generator
	Now  func() time.Time
}

// Make returns a new event with a generated key and the current time.
// Optional fields stay absent unless an option sets them.
func (f *Factory) Make(opts ...Option) *AlarmEvent {
	e := &AlarmEvent{
		UUID:      f.Keys.Next(),
		Timestamp: f.Now().UnixMilli(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultFactory = &Factory{Keys: keygen.NewTimestamp(), Now: time.Now}

// Make returns a new event from the process-wide factory.
func Make(opts ...Option) *AlarmEvent {
	return defaultFactory.Make(opts...)
}
