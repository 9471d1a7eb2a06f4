package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/internal/styles"
)

func newDescribeCommand(a *app) *cobra.Command {
	var fields bool
	cmd := &cobra.Command{
		Use:   "describe FUNCTION",
		Short: "Show the parameters of a function module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			fd, err := conn.LookupFunction(strings.ToUpper(args[0]))
			if err != nil {
				return fmt.Errorf("describe %s: %w", args[0], err)
			}
			describe(cmd, fd, fields)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fields, "fields", false, "also list the fields of structure and table parameters")
	return cmd
}

func describe(cmd *cobra.Command, fd *nwrfc.FunctionDescription, fields bool) {
	w := cmd.OutOrStdout()
	headers := []string{"PARAMETER", "DIRECTION", "TYPE", "LENGTH", "DECIMALS", "OPTIONAL", "DEFAULT", "TEXT"}
	rows := make([][]string, 0, fd.ParameterCount())
	for _, p := range fd.Parameters() {
		typ := p.Type.String()
		if p.TypeDesc != nil {
			typ += " " + p.TypeDesc.Name
		}
		opt := ""
		if p.Optional {
			opt = "X"
		}
		rows = append(rows, []string{
			p.Name, p.Direction.String(), typ,
			strconv.FormatUint(uint64(p.UcLength), 10),
			strconv.FormatUint(uint64(p.Decimals), 10),
			opt, p.DefaultValue, p.Text,
		})
	}
	printf(w, "%s\n%s\n", styles.Header(fd.Name), styles.Rows(headers, rows))

	if !fields {
		return
	}
	seen := map[string]bool{}
	for _, p := range fd.Parameters() {
		td := p.TypeDesc
		if td == nil || seen[td.Name] {
			continue
		}
		seen[td.Name] = true
		frows := make([][]string, 0, td.FieldCount())
		for _, f := range td.Fields() {
			frows = append(frows, []string{
				f.Name, f.Type.String(),
				strconv.FormatUint(uint64(f.UcOffset), 10),
				strconv.FormatUint(uint64(f.UcLength), 10),
				strconv.FormatUint(uint64(f.Decimals), 10),
			})
		}
		printf(w, "%s\n%s\n", styles.SubHeader(td.Name), styles.Rows([]string{"FIELD", "TYPE", "OFFSET", "LENGTH", "DECIMALS"}, frows))
	}
}
