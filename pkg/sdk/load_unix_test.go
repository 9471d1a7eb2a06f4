//go:build (linux || darwin) && (amd64 || arm64)

package sdk

import (
	"os"
	"strings"
	"testing"
)

func TestLoadMissingLibrary(t *testing.T) {
	lib, err := Load("/nonexistent/libsapnwrfc-missing.so")
	if err == nil {
		lib.Close()
		t.Fatal("Load should fail for a missing library")
	}
	if !strings.Contains(err.Error(), "libsapnwrfc-missing.so") {
		t.Errorf("error should name the library path, got %v", err)
	}
}

// TestLoadNative resolves the real library when NWRFC_LIB points at it.
func TestLoadNative(t *testing.T) {
	path := os.Getenv("NWRFC_LIB")
	if path == "" {
		t.Skip("NWRFC_LIB not set")
	}

	lib, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) failed: %v", path, err)
	}
	defer lib.Close()

	if err := lib.API.Validate(); err != nil {
		t.Fatalf("resolved table incomplete: %v", err)
	}
	var major, minor, patch uint32
	lib.API.GetVersion(&major, &minor, &patch)
	if major == 0 {
		t.Errorf("unexpected library version %d.%d.%d", major, minor, patch)
	}
}
