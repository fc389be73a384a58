package logger

import (
	"reflect"
	"testing"
)

func TestDispatch(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Init(a)
	Attach(b)
	t.Cleanup(func() { Init() })

	Info("[Test] hello", "k", 1)
	Warn("[Test] careful")
	Log("[Test] plain", "x", "y")

	for name, r := range map[string]*Recorder{"first": a, "attached": b} {
		if got := len(r.Entries("")); got != 3 {
			t.Errorf("%s: %d entries, want 3", name, got)
		}
		logs := r.Entries("log")
		if len(logs) != 1 || !reflect.DeepEqual(logs[0].KeyVals, []any{"x", "y"}) {
			t.Errorf("%s: Log entry = %#v, want key/values forwarded", name, logs)
		}
	}
}

func TestUninitializedIsNoop(t *testing.T) {
	mu.Lock()
	singleton = nil
	mu.Unlock()

	Info("nobody listens")
	Error("still nobody")
}
