package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func testOptions() (Options, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return Options{Logger: logger}, hook
}

// warningCodes returns the code field of every warning logged, in order.
func warningCodes(hook *test.Hook) []string {
	var codes []string
	for _, entry := range hook.AllEntries() {
		if entry.Level != logrus.WarnLevel {
			continue
		}
		if code, ok := entry.Data["code"].(string); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

func hasWarning(hook *test.Hook, message string) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == message {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
