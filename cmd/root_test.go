package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"run", "runs", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "tiktok-apify", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"results-per-hashtag", "max-profiles", "require-email",
		"format", "output-dir", "concurrency", "resume",
	} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}

	flag := runCmd.Flags().Lookup("require-email")
	assert.Equal(t, "true", flag.DefValue)
}

func TestRunCommand_ArgsValidation(t *testing.T) {
	// No topics and no --resume is an error.
	runResume = ""
	err := runCmd.Args(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one topic")

	// Topics alone are fine.
	assert.NoError(t, runCmd.Args(runCmd, []string{"food"}))

	// --resume alone is fine, but not combined with topics.
	runResume = "some-run-id"
	defer func() { runResume = "" }()
	assert.NoError(t, runCmd.Args(runCmd, nil))
	err = runCmd.Args(runCmd, []string{"food"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes no topics")
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "runs list should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)
}
