package logger

import (
	"reflect"
	"testing"
)

type recorded struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	entries []recorded
}

func (r *recorder) add(level, message string, keyvals []any) {
	r.entries = append(r.entries, recorded{level: level, message: message, keyvals: keyvals})
}

func (r *recorder) Log(message string, keyvals ...any)   { r.add("log", message, keyvals) }
func (r *recorder) Debug(message string, keyvals ...any) { r.add("debug", message, keyvals) }
func (r *recorder) Info(message string, keyvals ...any)  { r.add("info", message, keyvals) }
func (r *recorder) Warn(message string, keyvals ...any)  { r.add("warn", message, keyvals) }
func (r *recorder) Error(message string, keyvals ...any) { r.add("error", message, keyvals) }
func (r *recorder) Fatal(message string, keyvals ...any) { r.add("fatal", message, keyvals) }

func TestDispatchToAllInstances(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	Init(first, second)
	defer func() { singleton = nil }()

	Info("matched", "pairs", 3)
	Log("plain", "k", "v")

	for _, r := range []*recorder{first, second} {
		if len(r.entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(r.entries))
		}
		want := recorded{level: "info", message: "matched", keyvals: []any{"pairs", 3}}
		if !reflect.DeepEqual(r.entries[0], want) {
			t.Fatalf("expected %+v, got %+v", want, r.entries[0])
		}
		if !reflect.DeepEqual(r.entries[1].keyvals, []any{"k", "v"}) {
			t.Fatalf("expected keyvals to be forwarded by Log, got %v", r.entries[1].keyvals)
		}
	}
}

func TestUninitializedLoggerIsSilent(t *testing.T) {
	singleton = nil
	Debug("dropped")
	Warn("dropped")
	Error("dropped")
}
