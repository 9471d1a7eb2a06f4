//go:build mage

package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/mkfoss/nwrfc/internal/styles"
)

const (
	module = "github.com/mkfoss/nwrfc"
	binary = "bin/rfcread"
)

// lintTargets covers the dlopen loader and the stub for platforms without it.
var lintTargets = []struct{ goos, goarch string }{
	{"linux", "amd64"},
	{"darwin", "arm64"},
	{"windows", "amd64"},
}

// Default target to run when no target is specified
var Default = Info

// Info lists the targets
func Info() {
	fmt.Println(styles.Header("nwrfc build targets"))
	fmt.Println()
	for _, t := range [][2]string{
		{"ci", "format check, tests, lint"},
		{"test", "tests against the simulated system, with -race"},
		{"testnative", "loader tests against the SDK in $NWRFC_LIB"},
		{"lint", "golangci-lint for every loader platform"},
		{"format", "gofmt -s -w"},
		{"build", "build " + binary},
		{"demo", "read T000 from the simulated system"},
		{"version", "print the VERSION file"},
		{"release", "tag and push the VERSION release"},
	} {
		fmt.Println(styles.Example(t[0], t[1]))
	}
	fmt.Println()
	fmt.Println(styles.Field("SDK", "NWRFC_LIB="+envOr("NWRFC_LIB", "(platform default)")))
}

// CI checks formatting, runs the tests and lints
func CI() error {
	fmt.Println(styles.Header("CI"))
	mg.SerialDeps(FormatCheck, Test, Lint)
	fmt.Println(styles.Success("✓ CI passed"))
	return nil
}

// Test runs every package against the simulated system
func Test() error {
	return step("tests", "go", "test", "-race", "-count=1", "./...")
}

// TestNative runs the loader tests against the SDK named by NWRFC_LIB
func TestNative() error {
	lib := os.Getenv("NWRFC_LIB")
	if lib == "" {
		return fail("NWRFC_LIB must point at libsapnwrfc")
	}
	if _, err := os.Stat(lib); err != nil {
		return fail(err.Error())
	}
	fmt.Println(styles.Info("SDK " + lib))
	env := map[string]string{"NWRFC_LIB": lib}
	if err := sh.RunWithV(env, "go", "test", "-count=1", "-v", "-run", "Native", "./pkg/sdk/..."); err != nil {
		return fail("native tests: " + err.Error())
	}
	fmt.Println(styles.Success("✓ native tests"))
	return nil
}

// Lint runs golangci-lint once per loader platform, magefiles included
func Lint() error {
	for _, t := range lintTargets {
		env := map[string]string{"GOOS": t.goos, "GOARCH": t.goarch}
		fmt.Println(styles.Info("lint " + t.goos + "/" + t.goarch))
		if err := sh.RunWithV(env, "golangci-lint", "run", "--build-tags=mage"); err != nil {
			return fail("lint " + t.goos + "/" + t.goarch + ": " + err.Error())
		}
	}
	fmt.Println(styles.Success("✓ lint"))
	return nil
}

// Format rewrites the sources with gofmt -s
func Format() error {
	return step("gofmt", "gofmt", "-s", "-w", ".")
}

// FormatCheck fails when a file is not gofmt -s clean
func FormatCheck() error {
	out, err := sh.Output("gofmt", "-s", "-l", ".")
	if err != nil {
		return fail("gofmt: " + err.Error())
	}
	if out = strings.TrimSpace(out); out != "" {
		return fail("not formatted:\n" + out)
	}
	fmt.Println(styles.Success("✓ gofmt"))
	return nil
}

// Build compiles rfcread with the VERSION stamped in
func Build() error {
	version, err := readVersion()
	if err != nil {
		return err
	}
	ldflags := "-s -w -X " + module + "/internal/cli.Version=" + version
	return step("build "+binary+" "+version,
		"go", "build", "-trimpath", "-ldflags", ldflags, "-o", binary, "./cmd/rfcread")
}

// Demo reads the client table of the simulated system
func Demo() error {
	return sh.RunV("go", "run", "./cmd/rfcread", "read", "T000", "--simulate")
}

// Version prints the VERSION file
func Version() error {
	version, err := readVersion()
	if err != nil {
		return err
	}
	fmt.Println(styles.Field("Version", version))
	return nil
}

// Release runs CI on a clean tree and pushes an annotated tag for VERSION
func Release() error {
	version, err := readVersion()
	if err != nil {
		return err
	}
	if out, _ := sh.Output("git", "status", "--porcelain"); strings.TrimSpace(out) != "" {
		return fail("uncommitted changes")
	}
	if tags, _ := sh.Output("git", "tag", "--list", version); strings.TrimSpace(tags) != "" {
		return fail("tag " + version + " exists, bump VERSION")
	}
	mg.SerialDeps(CI)

	if err := sh.Run("git", "tag", "-a", version, "-m", "Release "+version); err != nil {
		return fail("tag: " + err.Error())
	}
	if err := sh.Run("git", "push", "origin", version); err != nil {
		return fail("push: " + err.Error())
	}
	fmt.Println(styles.Success("✓ released " + version))
	fmt.Println(styles.Dim("https://" + module + "/releases/tag/" + version))
	return nil
}

var semver = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.]+)?$`)

// readVersion returns VERSION with a leading v.
func readVersion() (string, error) {
	data, err := os.ReadFile("VERSION")
	if err != nil {
		return "", fmt.Errorf("failed to read VERSION file: %w", err)
	}
	version := strings.TrimSpace(string(data))
	if !semver.MatchString(version) {
		return "", fmt.Errorf("invalid version %q in VERSION", version)
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version, nil
}

// step runs one command verbosely between a status line and a check mark.
func step(what string, cmd string, args ...string) error {
	fmt.Println(styles.Info(what + "..."))
	if err := sh.RunV(cmd, args...); err != nil {
		return fail(what + ": " + err.Error())
	}
	fmt.Println(styles.Success("✓ " + what))
	return nil
}

func fail(msg string) error {
	return fmt.Errorf("%s %s", styles.Error("Error:"), msg)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
