package sim

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// call is one function module execution. It runs with s.mu held and works
// on the containers directly.
type call struct {
	s    *System
	conn *conn
	fn   *container
}

func (c *call) slot(name string) *slot {
	return c.fn.slots[name]
}

func (c *call) str(name string) string {
	return c.slot(name).goString()
}

func (c *call) set(name, value string) *fault {
	return c.slot(name).setString(value)
}

func (c *call) table(name string) *table {
	return c.s.childTable(c.slot(name))
}

func (c *call) structure(name string) *container {
	return c.s.childContainer(c.slot(name))
}

// exception raises the ABAP exception key.
func exception(key, format string, args ...any) *fault {
	return failf(rfcapi.RCAbapException, key, format, args...)
}

func (c *call) rows(t *table, field string) []string {
	out := make([]string, len(t.rows))
	for i := range t.rows {
		out[i] = c.s.row(t, i).slots[field].goString()
	}
	return out
}

func (c *call) appendRow(t *table, values map[string]string) *fault {
	_, row := c.s.appendRow(t)
	for name, v := range values {
		if f := row.slots[name].setString(v); f != nil {
			return f
		}
	}
	return nil
}

func stfcConnection(c *call) *fault {
	req := c.str("REQUTEXT")
	if f := c.set("ECHOTEXT", req); f != nil {
		return f
	}
	return c.set("RESPTEXT", respText(c))
}

func respText(c *call) string {
	return "SAP R/3 Rel. 750   Sysid: SIM      Date: 20260101   Time: 120000   Logon_Data: " +
		c.conn.client + "/" + c.conn.user + "/" + c.conn.lang
}

func stfcStructure(c *call) *fault {
	in := c.structure("IMPORTSTRUCT")
	c.s.copyInto(c.structure("ECHOSTRUCT"), in)
	t := c.table("RFCTABLE")
	_, row := c.s.appendRow(t)
	c.s.copyInto(row, in)
	return c.set("RESPTEXT", respText(c))
}

func stfcChanging(c *call) *fault {
	start, counter := c.slot("START_VALUE").i, c.slot("COUNTER").i
	if f := c.slot("RESULT").setInt(start + counter); f != nil {
		return f
	}
	return c.slot("COUNTER").setInt(counter + 1)
}

func stfcDeepStructure(c *call) *fault {
	c.s.copyInto(c.structure("ECHOSTRUCT"), c.structure("IMPORTSTRUCT"))
	return c.set("RESPTEXT", respText(c))
}

func multiplyAmount(c *call) *fault {
	ctx := apd.BaseContext.WithPrecision(34)
	product := new(apd.Decimal)
	if _, err := ctx.Mul(product, c.slot("AMOUNT").dec, c.slot("FACTOR").dec); err != nil {
		return failf(rfcapi.RCAbapRuntimeFailure, "BCD_OVERFLOW", "Overflow during arithmetic operation (type P)")
	}
	if f := c.slot("RESULT_DF34").setDecimal(product); f != nil {
		return f
	}
	if f := c.slot("RESULT").setDecimal(product); f != nil {
		return failf(rfcapi.RCAbapRuntimeFailure, "BCD_OVERFLOW", "Overflow during arithmetic operation (type P) in program Z_SIM_MULTIPLY_AMOUNT")
	}
	return nil
}

// condition is one comparison of an RFC_READ_TABLE selection.
type condition struct {
	col   int
	op    string
	value string
}

var conditionRE = regexp.MustCompile(`(?i)^\s*([A-Z0-9_]+)\s*(=|<>|EQ|NE|LIKE)\s*'((?:[^']|'')*)'\s*$`)

var andRE = regexp.MustCompile(`(?i)\s+AND\s+`)

func (cd condition) match(v string) bool {
	switch cd.op {
	case "=", "EQ":
		return v == cd.value
	case "<>", "NE":
		return v != cd.value
	default:
		return like(v, cd.value)
	}
}

// like matches the ABAP SQL LIKE wildcards % and _.
func like(v, pattern string) bool {
	if pattern == "" {
		return v == ""
	}
	switch pattern[0] {
	case '%':
		for i := 0; i <= len(v); i++ {
			if like(v[i:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		return v != "" && like(v[1:], pattern[1:])
	default:
		return v != "" && v[0] == pattern[0] && like(v[1:], pattern[1:])
	}
}

func parseOptions(lines []string, tab *dbTable) ([]condition, *fault) {
	where := strings.TrimSpace(strings.Join(lines, " "))
	if where == "" {
		return nil, nil
	}
	var out []condition
	for _, part := range andRE.Split(where, -1) {
		m := conditionRE.FindStringSubmatch(part)
		if m == nil {
			return nil, exception("OPTION_NOT_VALID", "Selection %q is not valid", part)
		}
		col := tab.column(m[1])
		if col < 0 {
			return nil, exception("OPTION_NOT_VALID", "Field %s unknown in %s", strings.ToUpper(m[1]), tab.name)
		}
		out = append(out, condition{col: col, op: strings.ToUpper(m[2]), value: strings.ReplaceAll(m[3], "''", "'")})
	}
	return out, nil
}

func readTable(c *call) *fault {
	name := strings.ToUpper(c.str("QUERY_TABLE"))
	tab, ok := c.s.db[name]
	if !ok {
		return exception("TABLE_NOT_AVAILABLE", "Table %s is not available", name)
	}
	delim := c.str("DELIMITER")

	fields := c.table("FIELDS")
	var cols []int
	for _, f := range c.rows(fields, "FIELDNAME") {
		col := tab.column(f)
		if col < 0 {
			return exception("FIELD_NOT_VALID", "Field %s unknown in %s", strings.ToUpper(f), name)
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		for i := range tab.columns {
			cols = append(cols, i)
		}
	}

	offset := 0
	for i, col := range cols {
		if i > 0 {
			offset += len(delim)
		}
		offset += tab.columns[col].length
	}
	if offset > 512 {
		return exception("DATA_BUFFER_EXCEEDED", "Selected fields do not fit into 512 characters")
	}

	conds, f := parseOptions(c.rows(c.table("OPTIONS"), "TEXT"), tab)
	if f != nil {
		return f
	}

	c.s.clearTable(fields)
	offset = 0
	for i, col := range cols {
		if i > 0 {
			offset += len(delim)
		}
		cl := tab.columns[col]
		if f := c.appendRow(fields, map[string]string{
			"FIELDNAME": cl.name,
			"OFFSET":    strconv.Itoa(offset),
			"LENGTH":    strconv.Itoa(cl.length),
			"TYPE":      string(cl.typ),
			"FIELDTEXT": cl.text,
		}); f != nil {
			return f
		}
		offset += cl.length
	}

	data := c.table("DATA")
	c.s.clearTable(data)
	if c.str("NO_DATA") != "" {
		return nil
	}

	skip, limit := int(c.slot("ROWSKIPS").i), int(c.slot("ROWCOUNT").i)
	for _, r := range tab.visible(c.conn.client) {
		if !matches(r, conds) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if limit > 0 && len(data.rows) >= limit {
			break
		}
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = pad(r[col], tab.columns[col].length)
		}
		if f := c.appendRow(data, map[string]string{"WA": strings.Join(parts, delim)}); f != nil {
			return f
		}
	}
	return nil
}

func matches(row []string, conds []condition) bool {
	for _, cd := range conds {
		if !cd.match(row[cd.col]) {
			return false
		}
	}
	return true
}

func pad(v string, n int) string {
	if len(v) >= n {
		return v[:n]
	}
	return v + strings.Repeat(" ", n-len(v))
}
