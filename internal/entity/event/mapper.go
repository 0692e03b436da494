package event

import (
	"context"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/table"
)

// Mapper binds and restores alarm events. It has no refresh hook, so the
// creation timestamp survives updates.
type Mapper struct{}

var _ table.Mapper[AlarmEvent, int64] = (*Mapper)(nil)

func NewMapper() *Mapper {
	return &Mapper{}
}

func (m *Mapper) Identity(e *AlarmEvent) int64 { return e.UUID }

func (m *Mapper) KeyValues(k int64) []core.Value { return []core.Value{core.Int(k)} }

func (m *Mapper) RestoreKey(stmt core.Statement) (int64, error) {
	return stmt.ColumnInt64(0)
}

// Store binds the six columns in declaration order.
func (m *Mapper) Store(e *AlarmEvent, stmt core.Statement) error {
	binds := []core.Value{
		core.Int(e.UUID),
		core.Int(e.Name),
		core.Int(e.Timestamp),
		core.Int(e.Status),
		core.MaybeInt(e.Code),
		core.MaybeText(e.Note),
	}
	for pos, v := range binds {
		if err := stmt.Bind(pos, v); err != nil {
			return err
		}
	}
	return nil
}

// Restore reads the six columns in declaration order.
func (m *Mapper) Restore(e *AlarmEvent, stmt core.Statement) error {
	var err error
	if e.UUID, err = stmt.ColumnInt64(int(ColumnUUID)); err != nil {
		return err
	}
	if e.Name, err = stmt.ColumnInt64(int(ColumnName)); err != nil {
		return err
	}
	if e.Timestamp, err = stmt.ColumnInt64(int(ColumnTimestamp)); err != nil {
		return err
	}
	if e.Status, err = stmt.ColumnInt64(int(ColumnStatus)); err != nil {
		return err
	}
	if e.Code, err = stmt.ColumnMaybeInt64(int(ColumnCode)); err != nil {
		return err
	}
	e.Note, err = stmt.ColumnMaybeText(int(ColumnNote))
	return err
}

// Store is the event table.
type Store = table.Table[AlarmEvent, int64]

// NewStore returns the event table on conn.
func NewStore(conn core.Connection, opts ...table.Option) (*Store, error) {
	return table.New[AlarmEvent, int64](conn, Descriptor(), NewMapper(), opts...)
}

// Open returns the event table and creates it when it does not exist.
func Open(ctx context.Context, conn core.Connection, opts ...table.Option) (*Store, error) {
	store, err := NewStore(conn, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Create(ctx, true); err != nil {
		return nil, err
	}
	return store, nil
}
