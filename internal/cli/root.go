// Package cli contains the rfcread commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/internal/config"
	"github.com/mkfoss/nwrfc/internal/styles"
	"github.com/mkfoss/nwrfc/pkg/sim"
)

// Version is set via ldflags at build time.
var Version = "dev"

// errNoDestination is returned when neither --dest nor --param name a system.
var errNoDestination = errors.New("no destination: use --dest or --param")

// simLogon is used with --simulate when no parameters are given.
var simLogon = nwrfc.Logon{AsHost: "sim", SysNr: "00", Client: "001", User: "DEVELOPER", Passwd: "Down1oad", Lang: "EN"}

// app holds the flags shared by every command.
type app struct {
	cfgFile  string
	dest     string
	lib      string
	params   map[string]string
	simulate bool
	verbose  bool

	logger *log.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "rfcread",
		Short:         "Read SAP tables and function metadata over RFC",
		Long:          `rfcread logs on to an SAP system with the NetWeaver RFC SDK and reads table contents through RFC_READ_TABLE.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "rfcread"})
			if a.verbose {
				a.logger.SetLevel(log.DebugLevel)
			} else {
				a.logger.SetLevel(log.WarnLevel)
			}
		},
	}
	root.SetVersionTemplate("rfcread version {{.Version}}\n")

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ./nwrfc.yaml or $XDG_CONFIG_HOME/nwrfc/nwrfc.yaml)")
	f.StringVarP(&a.dest, "dest", "d", "", "named destination from the config file")
	f.StringVar(&a.lib, "lib", "", "path to libsapnwrfc (default from config or the platform name)")
	f.StringToStringVarP(&a.params, "param", "p", nil, "connection parameter key=value, overrides the destination")
	f.BoolVar(&a.simulate, "simulate", false, "use the in-process simulated system")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newReadCommand(a),
		newDescribeCommand(a),
		newPingCommand(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.ErrorDetails(err, nil))
		os.Exit(1)
	}
}

// library loads the SDK, or starts a simulated system.
func (a *app) library(cfg *config.Config) (*nwrfc.Library, error) {
	if a.simulate {
		a.logger.Debug("using simulated system")
		return nwrfc.New(sim.New().API(), nwrfc.BackendSimulated, nwrfc.WithLogger(a.logger))
	}
	path := a.lib
	if path == "" {
		path = cfg.Library()
	}
	a.logger.Debug("loading library", "path", path)
	return nwrfc.Load(path, nwrfc.WithLogger(a.logger))
}

// connectionParams merges the destination with --param overrides.
func (a *app) connectionParams(cfg *config.Config) (nwrfc.Params, error) {
	params := nwrfc.Params{}
	if a.dest != "" {
		p, err := cfg.Destination(a.dest)
		if err != nil {
			return nil, err
		}
		maps.Copy(params, p)
	}
	for k, v := range a.params {
		params[strings.ToLower(k)] = v
	}
	if len(params) == 0 {
		if !a.simulate {
			return nil, errNoDestination
		}
		return simLogon.Params(), nil
	}
	return params, nil
}

// connect opens a connection with the resolved parameters. The caller
// closes the connection.
func (a *app) connect() (*nwrfc.Connection, error) {
	cfg, err := config.Load(config.Options{File: a.cfgFile})
	if err != nil {
		return nil, err
	}
	if p := cfg.Path(); p != "" {
		a.logger.Debug("loaded config", "path", p)
	}
	params, err := a.connectionParams(cfg)
	if err != nil {
		return nil, err
	}
	lib, err := a.library(cfg)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("logging on", "host", firstOf(params, "ashost", "mshost"), "client", params["client"], "user", params["user"])
	conn, err := lib.Open(params)
	if err != nil {
		return nil, fmt.Errorf("logon failed: %w", err)
	}
	return conn, nil
}

func firstOf(p nwrfc.Params, keys ...string) string {
	for _, k := range keys {
		if v := p[k]; v != "" {
			return v
		}
	}
	return ""
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
