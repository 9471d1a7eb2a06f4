package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/internal/styles"
)

// optionWidth is the line length of RFC_DB_OPT-TEXT.
const optionWidth = 72

type readOptions struct {
	fields    []string
	where     string
	max       int
	skip      int
	delimiter string
	raw       bool
}

func newReadCommand(a *app) *cobra.Command {
	o := &readOptions{}
	cmd := &cobra.Command{
		Use:   "read TABLE",
		Short: "Read rows of a table through RFC_READ_TABLE",
		Long: `Read rows of a transparent table through RFC_READ_TABLE.

Examples:
  # Users of the logon client
  rfcread read USR02 --dest dev --fields BNAME,USTYP --max 20

  # Against the simulated system
  rfcread read T000 --simulate --where "MANDT <> '066'"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()
			return readTable(cmd.Context(), cmd, conn, strings.ToUpper(args[0]), o)
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&o.fields, "fields", "f", nil, "columns to read (default all)")
	f.StringVarP(&o.where, "where", "w", "", "selection, e.g. \"BNAME LIKE 'D%'\"")
	f.IntVarP(&o.max, "max", "n", 0, "maximum number of rows, 0 for all")
	f.IntVar(&o.skip, "skip", 0, "number of rows to skip")
	f.StringVar(&o.delimiter, "delimiter", "|", "column delimiter used on the wire")
	f.BoolVar(&o.raw, "raw", false, "print delimited lines instead of a table")
	return cmd
}

// optionLines splits a selection into RFC_DB_OPT lines at word boundaries.
func optionLines(where string) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(where) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > optionWidth {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

func readTable(ctx context.Context, cmd *cobra.Command, conn *nwrfc.Connection, table string, o *readOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.delimiter == "" {
		return fmt.Errorf("--delimiter must not be empty")
	}
	in := nwrfc.Record{
		"QUERY_TABLE": nwrfc.String(table),
		"DELIMITER":   nwrfc.String(o.delimiter),
		"ROWCOUNT":    nwrfc.Int(int64(o.max)),
		"ROWSKIPS":    nwrfc.Int(int64(o.skip)),
	}
	if len(o.fields) > 0 {
		rows := make([]nwrfc.Record, 0, len(o.fields))
		for _, name := range o.fields {
			rows = append(rows, nwrfc.Record{"FIELDNAME": nwrfc.String(strings.ToUpper(strings.TrimSpace(name)))})
		}
		in["FIELDS"] = nwrfc.Rows(rows...)
	}
	if lines := optionLines(o.where); len(lines) > 0 {
		rows := make([]nwrfc.Record, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, nwrfc.Record{"TEXT": nwrfc.String(l)})
		}
		in["OPTIONS"] = nwrfc.Rows(rows...)
	}

	out, err := conn.Call(ctx, "RFC_READ_TABLE", in)
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}

	fields, err := out["FIELDS"].AsRows()
	if err != nil {
		return err
	}
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i], _ = f["FIELDNAME"].AsString()
	}
	data, err := out["DATA"].AsRows()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if o.raw {
		printf(w, "%s\n", strings.Join(headers, o.delimiter))
		for _, r := range data {
			wa, _ := r["WA"].AsString()
			printf(w, "%s\n", wa)
		}
		return nil
	}

	rows := make([][]string, 0, len(data))
	for _, r := range data {
		wa, _ := r["WA"].AsString()
		cols := strings.Split(wa, o.delimiter)
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		rows = append(rows, cols)
	}
	printf(w, "%s\n%s\n", styles.Header(table), styles.Rows(headers, rows))
	printf(w, "%s\n", styles.Dim(fmt.Sprintf("%d rows", len(rows))))
	return nil
}
