package logging

import (
	"encoding/json"
	"fmt"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
	z string
}

type User struct {
	Name string
}

type StructWithStruct struct {
	x int
	Y User
	z string
}

type StructWithAnonymousStruct struct {
	x int
	Y struct {
		Y1 string
	}
	Z string
}

// fieldMap decodes an observed log entry's context fields into a plain map, the same
// shape Infow's keysAndValues end up serialized as.
func fieldMap(t *testing.T, fields []zapcore.Field) map[string]any {
	t.Helper()
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	buf, err := json.Marshal(enc.Fields)
	test.That(t, err, test.ShouldBeNil)
	out := make(map[string]any)
	test.That(t, json.Unmarshal(buf, &out), test.ShouldBeNil)
	return out
}

// TestConsoleOutputFormat exercises Infow's structured-field serialization through an
// observed logger, checking that nested and anonymous struct values come through as
// the "w" API's JSON encoder produces them.
func TestConsoleOutputFormat(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)

	logger.Info("impl Info log")
	entries := observed.TakeAll()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].Message, test.ShouldEqual, "impl Info log")
	test.That(t, entries[0].Level, test.ShouldEqual, zapcore.InfoLevel)

	logger.Infof("impl %s log", "infof")
	entries = observed.TakeAll()
	test.That(t, entries[0].Message, test.ShouldEqual, "impl infof log")

	logger.Infow("impl logw", "key", "value")
	entries = observed.TakeAll()
	test.That(t, fieldMap(t, entries[0].Context), test.ShouldResemble, map[string]any{"key": "value"})

	logger.Infow("impl logw", "key", "val", "StructWithAnonymousStruct", StructWithAnonymousStruct{1, struct{ Y1 string }{"y1"}, "foo"})
	entries = observed.TakeAll()
	test.That(t, fieldMap(t, entries[0].Context), test.ShouldResemble, map[string]any{
		"key":                        "val",
		"StructWithAnonymousStruct": map[string]any{"Y": map[string]any{"Y1": "y1"}, "Z": "foo"},
	})

	logger.Infow("StructWithStruct", "key", "val", "StructWithStruct", StructWithStruct{1, User{"alice"}, "foo"})
	entries = observed.TakeAll()
	test.That(t, fieldMap(t, entries[0].Context), test.ShouldResemble, map[string]any{
		"key":              "val",
		"StructWithStruct": map[string]any{"Y": map[string]any{"Name": "alice"}},
	})

	logger.Infow("BasicStruct", "implOneKey", "1val", "BasicStruct", BasicStruct{1, "alice", "foo"})
	entries = observed.TakeAll()
	test.That(t, fieldMap(t, entries[0].Context), test.ShouldResemble, map[string]any{
		"implOneKey":  "1val",
		"BasicStruct": map[string]any{"X": float64(1)},
	})

	// Define a completely anonymous struct.
	anonymousTypedValue := struct {
		x int
		y struct {
			Y1 string
		}
		Z string
	}{1, struct{ Y1 string }{"y1"}, "z"}

	// Even though `y.Y1` is public, it is not included in the output. It isn't a rule that must be
	// excluded. This is tested just as a description of the current behavior.
	logger.Infow("impl logw", "key", "val", "anonymous struct", anonymousTypedValue)
	entries = observed.TakeAll()
	test.That(t, fieldMap(t, entries[0].Context), test.ShouldResemble, map[string]any{
		"key":              "val",
		"anonymous struct": map[string]any{"Z": "z"},
	})

	// Represent a struct as a string using `fmt.Sprintf`.
	logger.Infow("impl logw", "key", "val", "fmt.Sprintf", fmt.Sprintf("%+v", anonymousTypedValue))
	entries = observed.TakeAll()
	test.That(t, fieldMap(t, entries[0].Context), test.ShouldResemble, map[string]any{
		"key":           "val",
		"fmt.Sprintf": "{x:1 y:{Y1:y1} Z:z}",
	})
}
