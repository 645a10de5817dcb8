package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := NewJobsCLI("127.0.0.1:0")
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Trigger(context.Background(), "reindex", 0)
	require.ErrorContains(t, err, "unsupported job reindex")
}

func TestNilCLIReportsMissingClients(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "purge", 0)
	require.Error(t, err)
	_, err = c.InspectQueue()
	require.Error(t, err)
}

func TestRunUsageErrors(t *testing.T) {
	c := &JobsCLI{}
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no args", args: nil, want: "usage"},
		{name: "unknown command", args: []string{"reindex"}, want: "unknown jobs command"},
		{name: "bad retention", args: []string{"purge", "soon"}, want: "invalid retention"},
		{name: "negative retention", args: []string{"purge", "-1h"}, want: "invalid retention"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := c.Run(context.Background(), tc.args, &stdout, &stderr)
			require.Equal(t, 2, code)
			require.Contains(t, stderr.String(), tc.want)
			require.Empty(t, stdout.String())
		})
	}
}

func TestRunReportsEnqueueFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := (&JobsCLI{}).Run(context.Background(), []string{"purge"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "client not configured")
}
