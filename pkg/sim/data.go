package sim

import "strings"

// dbTable is a transparent table of the simulated database. Every value is
// stored in its character form.
type dbTable struct {
	name            string
	clientDependent bool
	columns         []column
	rows            [][]string
}

type column struct {
	name   string
	length int
	typ    byte // ABAP internal type: C, N, D, T
	text   string
}

func (t *dbTable) column(name string) int {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, c := range t.columns {
		if c.name == name {
			return i
		}
	}
	return -1
}

// visible returns the rows of client. The client is the first column of a
// client-dependent table.
func (t *dbTable) visible(client string) [][]string {
	if !t.clientDependent {
		return t.rows
	}
	var out [][]string
	for _, r := range t.rows {
		if r[0] == client {
			out = append(out, r)
		}
	}
	return out
}

func (s *System) defineTable(t *dbTable) {
	s.db[t.name] = t
}

func (s *System) buildDatabase() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defineTable(&dbTable{
		name:            "USR02",
		clientDependent: true,
		columns: []column{
			{"MANDT", 3, 'C', "Client"},
			{"BNAME", 12, 'C', "User Name in User Master Record"},
			{"GLTGV", 8, 'D', "User valid from"},
			{"GLTGB", 8, 'D', "User valid to"},
			{"USTYP", 1, 'C', "User Type"},
			{"CLASS", 12, 'C', "User group in user master maintenance"},
			{"TRDAT", 8, 'D', "Last Logon Date"},
		},
		rows: [][]string{
			{"000", "DDIC", "00000000", "00000000", "A", "SUPER", "20260105"},
			{"000", "SAP*", "00000000", "00000000", "A", "SUPER", "20240312"},
			{"001", "BATCH_JOBS", "20230101", "99991231", "B", "", "20261018"},
			{"001", "DDIC", "00000000", "00000000", "A", "SUPER", "20260911"},
			{"001", "DEVELOPER", "20230101", "00000000", "A", "DEVELOPER", "20261019"},
			{"001", "SAP*", "00000000", "00000000", "A", "SUPER", "20230101"},
			{"001", "U", "20250601", "20271231", "A", "", "20261019"},
		},
	})

	s.defineTable(&dbTable{
		name: "T000",
		columns: []column{
			{"MANDT", 3, 'C', "Client"},
			{"MTEXT", 25, 'C', "Client name"},
			{"ORT01", 25, 'C', "City"},
			{"MWAER", 5, 'C', "Standard currency"},
			{"CCCATEGORY", 1, 'C', "Client role"},
		},
		rows: [][]string{
			{"000", "SAP AG Konzern", "Walldorf", "EUR", "S"},
			{"001", "Simulated Development", "Walldorf", "EUR", "C"},
			{"066", "EarlyWatch", "Walldorf", "EUR", "S"},
		},
	})
}
