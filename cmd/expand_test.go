package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"expand",
		"--start", "2024-03-04T10:00:00Z",
		"--end", "2024-03-04T11:00:00Z",
		"--days", "1,3,5",
		"--until", "2024-03-08T23:59:59Z",
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Mon  2024-03-04T10:00:00Z  2024-03-04T11:00:00Z")
	assert.Contains(t, out.String(), "Fri  2024-03-08T10:00:00Z  2024-03-08T11:00:00Z")
	assert.Contains(t, out.String(), "3 occurrences")
}
