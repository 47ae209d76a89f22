package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	color.NoColor = true
	t.Setenv("CAMPAIGNMESH_PROVIDER", "")

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func TestListCommand(t *testing.T) {
	out, _, err := execute(t, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "MarketingCampaignGenerator")
	assert.Contains(t, out, "SmartMarketingAssistant")
	assert.Contains(t, out, "sequential")
}

func TestShowCommand(t *testing.T) {
	out, _, err := execute(t, "show", "parallel")
	require.NoError(t, err)

	assert.Contains(t, out, "ContentCreators (parallel)")
	assert.Contains(t, out, "    SocialMediaExpert (model) → social_content reads: research_data")

	out, _, err = execute(t, "show", "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "tools: get_current_date, get_weather_data, calculate_marketing_budget")
}

func TestValidateCommand(t *testing.T) {
	out, _, err := execute(t, "validate", "sequential")
	require.NoError(t, err)
	assert.Contains(t, out, "sequential is valid")

	file := filepath.Join(t.TempDir(), "seeded.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: seeded\nroot: {name: Planner, instruction: \"Plan {{product}}\"}\n"), 0o600))

	_, _, err = execute(t, "validate", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing context key: product")

	_, _, err = execute(t, "validate", file, "--set", "product=EcoBottle")
	require.NoError(t, err)
}

func TestRunCommand_Mock(t *testing.T) {
	out, _, err := execute(t, "run", "parallel", "--provider", "mock", "--prompt", "EcoBottle", "--log-level", "error")
	require.NoError(t, err)

	for _, key := range []string{"research_data", "social_content", "email_content", "ad_content", "final"} {
		assert.Contains(t, out, "== "+key+" ==")
	}
}

func TestRunCommand_SaveDir(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "run", "parallel", "--provider", "mock", "--prompt", "EcoBottle", "--log-level", "error", "--session", "s1", "--save-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 5 artifacts to "+filepath.Join(dir, "s1"))

	for _, name := range []string{"research_data.md", "social_content.md", "email_content.md", "ad_content.md", "final.md"} {
		assert.FileExists(t, filepath.Join(dir, "s1", name))
	}
}

func TestRunCommand_StreamEvents(t *testing.T) {
	out, _, err := execute(t, "run", "tools", "--provider", "mock", "--prompt", "use calculate_marketing_budget for revenue 12000", "--stream-events", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, `[SmartMarketingAssistant] call calculate_marketing_budget({"revenue":12000})`)
	assert.Contains(t, out, "[SmartMarketingAssistant] calculate_marketing_budget → ")
	assert.Contains(t, out, "calculate_marketing_budget returned")
	assert.NotContains(t, out, "calculate_marketing_budget failed")
}

func TestRunCommand_Errors(t *testing.T) {
	_, _, err := execute(t, "run", "parallel", "--provider", "mock")
	assert.Error(t, err)

	_, _, err = execute(t, "run", "nope", "--provider", "mock", "--prompt", "x")
	assert.Error(t, err)

	_, _, err = execute(t, "run", "simple", "--provider", "mock", "--prompt", "x", "--set", "novalue")
	assert.ErrorContains(t, err, "want key=value")
}

func TestParseSets(t *testing.T) {
	state, err := parseSets([]string{"product=EcoBottle", " budget =1000=x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"product": "EcoBottle", "budget": "1000=x"}, state)
}
