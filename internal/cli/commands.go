package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/recordstore/internal/changefeed"
	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
	"github.com/rzpsarthak13/recordstore/internal/registry"
	"github.com/rzpsarthak13/recordstore/pkg/recordstore"
)

func parseKey(s string) (int64, error) {
	k, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return k, nil
}

func parseColumn(name string) (*core.Column, error) {
	if name == "" {
		return nil, nil
	}
	c, ok := event.ParseColumn(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	return c.Column(), nil
}

func newCreateCommand(a *app) *cobra.Command {
	var ifNotExists bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the event table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			if err := events.Create(cmd.Context(), ifNotExists); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", events.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifNotExists, "if-not-exists", true, "do nothing when the table exists")
	return cmd
}

func newDropCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Drop the event table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			if err := events.Drop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s dropped\n", events.Name())
			return nil
		},
	}
}

// fieldFlags are the editable event fields shared by insert and update.
type fieldFlags struct {
	name, status, timestamp, code int64
	note                          string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.name, "name", 0, "alarm name")
	cmd.Flags().Int64Var(&f.status, "status", 0, "status icon")
	cmd.Flags().Int64Var(&f.timestamp, "timestamp", 0, "event time in milliseconds (default now)")
	cmd.Flags().Int64Var(&f.code, "code", 0, "optional code")
	cmd.Flags().StringVar(&f.note, "note", "", "optional note")
}

// options returns the event options for the flags the user set.
func (f *fieldFlags) options(cmd *cobra.Command) []event.Option {
	var opts []event.Option
	changed := cmd.Flags().Changed
	if changed("name") {
		opts = append(opts, event.WithName(f.name))
	}
	if changed("status") {
		opts = append(opts, event.WithStatus(f.status))
	}
	if changed("timestamp") {
		opts = append(opts, event.WithTimestamp(f.timestamp))
	}
	if changed("code") {
		opts = append(opts, event.WithCode(f.code))
	}
	if changed("note") {
		opts = append(opts, event.WithNote(f.note))
	}
	return opts
}

func newInsertCommand(a *app) *cobra.Command {
	var (
		fields  fieldFlags
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a new event",
		Example: `  recordstore insert --name 1 --status 2
  recordstore insert --name 7 --status 0 --code 404 --note "door open"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			e := event.Make(fields.options(cmd)...)
			if err := events.Insert(cmd.Context(), e, replace); err != nil {
				return err
			}
			return a.renderEvents(cmd.OutOrStdout(), []event.AlarmEvent{*e})
		},
	}
	fields.register(cmd)
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing row with the same uuid")
	return cmd
}

// selectFlags are the ordering and paging flags of list and select.
type selectFlags struct {
	orderBy       string
	desc          bool
	limit, offset uint64
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.orderBy, "order-by", "", "column to order by")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "descending order")
	cmd.Flags().Uint64Var(&f.limit, "limit", 0, "maximum rows (0 for all)")
	cmd.Flags().Uint64Var(&f.offset, "offset", 0, "rows to skip")
}

func (f *selectFlags) options() (core.SelectOptions, error) {
	col, err := parseColumn(f.orderBy)
	if err != nil {
		return core.SelectOptions{}, err
	}
	return core.SelectOptions{OrderBy: col, Asc: !f.desc, Limit: f.limit, Offset: f.offset}, nil
}

func newListCommand(a *app) *cobra.Command {
	var sel selectFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List event uuids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := sel.options()
			if err != nil {
				return err
			}
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			keys, err := events.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.renderKeys(cmd.OutOrStdout(), keys)
		},
	}
	sel.register(cmd)
	return cmd
}

func newSelectCommand(a *app) *cobra.Command {
	var sel selectFlags
	cmd := &cobra.Command{
		Use:     "select",
		Short:   "Show events",
		Example: `  recordstore select --order-by timestamp --desc --limit 10`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := sel.options()
			if err != nil {
				return err
			}
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			rows, err := events.Select(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.renderEvents(cmd.OutOrStdout(), rows)
		},
	}
	sel.register(cmd)
	return cmd
}

func newSeekCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seek <uuid>",
		Short: "Show one event by uuid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			e, err := events.Seek(cmd.Context(), key)
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("event %d not found", key)
			}
			return a.renderEvents(cmd.OutOrStdout(), []event.AlarmEvent{*e})
		},
	}
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		fields fieldFlags
		unset  []string
	)
	cmd := &cobra.Command{
		Use:   "update <uuid>",
		Short: "Change fields of an event",
		Example: `  recordstore update 1700000000000001 --status 3
  recordstore update 1700000000000001 --clear note`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			e, err := events.Seek(cmd.Context(), key)
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("event %d not found", key)
			}

			for _, opt := range fields.options(cmd) {
				opt(e)
			}
			for _, name := range unset {
				switch strings.ToLower(name) {
				case "code":
					e.Code = nil
				case "note":
					e.Note = nil
				default:
					return fmt.Errorf("only optional fields can be cleared, got %q", name)
				}
			}

			if err := events.Update(cmd.Context(), e, false); err != nil {
				return err
			}
			return a.renderEvents(cmd.OutOrStdout(), []event.AlarmEvent{*e})
		},
	}
	fields.register(cmd)
	cmd.Flags().StringSliceVar(&unset, "clear", nil, "optional fields to unset (code, note)")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uuid>...",
		Short: "Delete events by uuid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]int64, len(args))
			for i, s := range args {
				k, err := parseKey(s)
				if err != nil {
					return err
				}
				keys[i] = k
			}
			events, err := a.events(cmd)
			if err != nil {
				return err
			}
			if err := events.DeleteAll(cmd.Context(), keys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d event(s)\n", len(keys))
			return nil
		},
	}
}

func newAggregateCommand(a *app) *cobra.Command {
	var (
		column   string
		distinct bool
	)
	cmd := &cobra.Command{
		Use:       "aggregate <count|avg|sum|min|max>",
		Short:     "Compute an aggregate over a column",
		Example:   `  recordstore aggregate avg --column status`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"count", "avg", "sum", "min", "max"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fn := core.AggregateFunc(strings.ToUpper(args[0]))
			if !fn.Valid() {
				return fmt.Errorf("unknown aggregate %q", args[0])
			}
			col, err := parseColumn(column)
			if err != nil {
				return err
			}
			events, err := a.events(cmd)
			if err != nil {
				return err
			}

			if fn == core.AggregateCount {
				n, err := events.Count(cmd.Context(), col, distinct)
				if err != nil {
					return err
				}
				return a.renderScalar(cmd.OutOrStdout(), fn, n)
			}
			v, err := events.Aggregate(cmd.Context(), fn, col, distinct)
			if err != nil {
				return err
			}
			if v == nil {
				return a.renderScalar(cmd.OutOrStdout(), fn, nil)
			}
			return a.renderScalar(cmd.OutOrStdout(), fn, *v)
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "column to aggregate (count only: empty counts rows)")
	cmd.Flags().BoolVar(&distinct, "distinct", false, "aggregate distinct values only")
	return cmd
}

func newLookupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <uuid>",
		Short: "Show an event as mirrored in the key-value store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseKey(args[0]); err != nil {
				return err
			}
			m := a.client.Mirror()
			if m == nil {
				return recordstore.ErrMirrorDisabled
			}
			record, err := m.Lookup(cmd.Context(), event.TableName, args[0])
			if errors.Is(err, core.ErrKeyNotFound) {
				return fmt.Errorf("event %s is not mirrored", args[0])
			}
			if err != nil {
				return err
			}
			return a.renderRecord(cmd.OutOrStdout(), record)
		},
	}
}

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the newest change events recorded for the event table",
		Long: `history reads the per-table change history the redis change feed keeps
(changefeed.history_length entries). It does not consume the events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue := a.client.Queue()
			if queue == nil {
				return fmt.Errorf("history requires changefeed.enabled")
			}
			rq, ok := queue.(*changefeed.RedisQueue)
			if !ok {
				return fmt.Errorf("history requires the redis change feed, have %s", a.client.Config().ChangeFeed.QueueType)
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			events, err := rq.Recent(cmd.Context(), event.TableName, limit)
			if err != nil {
				return err
			}
			return a.renderHistory(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}

func newTablesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Show the registered tables and their settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// opening the event table registers it
			if _, err := a.events(cmd); err != nil {
				return err
			}
			tr := a.client.TableRegistry()
			tables := make([]*registry.TableMetadata, 0, tr.Count())
			for _, name := range tr.List() {
				md, err := tr.Get(name)
				if err != nil {
					return err
				}
				tables = append(tables, md)
			}
			return a.renderTables(cmd.OutOrStdout(), tables)
		},
	}
}

func newDrainCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Apply the change feed to the mirror until interrupted",
		Long: `drain runs the change feed drainer in the foreground. It needs
changefeed.enabled and mirror.enabled, and a queue other processes can see
(redis or kafka). Stop it with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, m := a.client.Queue(), a.client.Mirror()
			if queue == nil || m == nil {
				return fmt.Errorf("drain requires changefeed.enabled and mirror.enabled")
			}

			settings := recordstore.DrainerSettings(a.client.Config().Drainer)
			d := recordstore.NewDrainer("cli", queue, m, settings.DrainerConfig(), a.logger)

			if err := d.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "draining, press Ctrl-C to stop")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			select {
			case <-sigChan:
			case <-cmd.Context().Done():
			}

			if err := d.Stop(); err != nil {
				return err
			}
			stats := d.Stats()
			a.logger.Info("drain finished", slog.Int64("applied", stats.Applied), slog.Int64("dropped", stats.Dropped))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d, dropped %d, pending %d\n", stats.Applied, stats.Dropped, stats.QueueSize)
			return nil
		},
	}
}
