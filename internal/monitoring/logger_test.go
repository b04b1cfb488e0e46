package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	prev := Logf
	defer func() { Logf = prev }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestComponent(t *testing.T) {
	prev := Logf
	defer func() { Logf = prev }()

	var got string
	logf := Component("places")

	// Installed after Component was created.
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	logf("consolidated %d clusters", 3)

	if want := "[places] consolidated 3 clusters"; got != want {
		t.Errorf("Component logger wrote %q, want %q", got, want)
	}
}
