package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// Library packages log through the global without any setup; it must work
// from package load, not only after Init.
func TestLogUsableWithoutInit(t *testing.T) {
	if Log == nil {
		t.Fatal("Log is nil before Init")
	}

	var buf bytes.Buffer
	Log.SetOutput(&buf)
	defer Log.SetOutput(os.Stdout)

	WithFields(logrus.Fields{"user_id": "u1", "dropped": 2}).Warn("dropped invalid rows")
	if buf.Len() == 0 {
		t.Fatal("expected log output")
	}
}

func TestInitAppliesLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	Init()
	if Log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", Log.GetLevel())
	}

	t.Setenv("LOG_LEVEL", "nonsense")
	Init()
	if Log.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", Log.GetLevel())
	}
}
