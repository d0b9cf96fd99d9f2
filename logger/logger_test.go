// file: logger/logger_test.go
package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, InitLogger(dir))
	t.Cleanup(func() { SetOutput(os.Stdout) })

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "expected one timestamped log file")
}

func TestSetOutput_CapturesAllLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Info.Println("hello")
	Warn.Println("careful")
	assert.Contains(t, buf.String(), "INFO: ")
	assert.Contains(t, buf.String(), "WARN: ")
}

func TestSetLogLevel_ProductionDiscardsDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	SetLogLevel("production")
	Debug.Println("hidden")
	Info.Println("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
