package sdk

import (
	"runtime"
	"testing"
)

func TestDefaultName(t *testing.T) {
	name := DefaultName()
	want := map[string]string{
		"windows": "sapnwrfc.dll",
		"darwin":  "libsapnwrfc.dylib",
		"linux":   "libsapnwrfc.so",
	}
	if w, ok := want[runtime.GOOS]; ok && name != w {
		t.Errorf("DefaultName() = %q, want %q", name, w)
	}
}
