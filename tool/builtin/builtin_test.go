package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/tool"
)

func toolCtx() *core.ToolContext {
	rc := core.NewRunContext(context.Background(), "s", "r", core.Content{}, 0, nil, nil, nil, nil, nil)
	return core.NewToolContext(rc, "call-1")
}

func TestCalculateMarketingBudget(t *testing.T) {
	assert.Equal(t, Budget{
		Revenue:           12000,
		Percentage:        10.0,
		RecommendedBudget: 1200.0,
		MonthlyBudget:     100.0,
	}, CalculateMarketingBudget(12000, 10.0))
}

func TestMarketingBudgetTool_DefaultPercentage(t *testing.T) {
	res, err := NewMarketingBudgetTool().Call(toolCtx(), map[string]any{"revenue": 12000.0})
	require.NoError(t, err)
	assert.Equal(t, Budget{Revenue: 12000, Percentage: 10, RecommendedBudget: 1200, MonthlyBudget: 100}, res)
}

func TestMarketingBudgetTool_RejectsBadInput(t *testing.T) {
	_, err := NewMarketingBudgetTool().Call(toolCtx(), map[string]any{})
	assert.ErrorIs(t, err, core.ErrToolExecution)

	_, err = NewMarketingBudgetTool().Call(toolCtx(), map[string]any{"revenue": "lots"})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)
}

func TestMarketingBudgetTool_NegativeRevenue(t *testing.T) {
	res, err := NewMarketingBudgetTool().Call(toolCtx(), map[string]any{"revenue": -1200.0})
	require.NoError(t, err)
	assert.Equal(t, Budget{Revenue: -1200, Percentage: 10, RecommendedBudget: -120, MonthlyBudget: -10}, res)
}

func TestWeatherDataTool_DefaultCity(t *testing.T) {
	res, err := NewWeatherDataTool().Call(toolCtx(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, Weather{City: "Islamabad", Temperature: "25°C", Condition: "Sunny", Humidity: "60%"}, res)

	res, err = NewWeatherDataTool().Call(toolCtx(), map[string]any{"city": "Lahore"})
	require.NoError(t, err)
	assert.Equal(t, "Lahore", res.(Weather).City)
}

func TestWeatherDataTool_EmptyCityIsEchoed(t *testing.T) {
	res, err := NewWeatherDataTool().Call(toolCtx(), map[string]any{"city": ""})
	require.NoError(t, err)
	assert.Equal(t, "", res.(Weather).City)
	assert.Equal(t, "", GetWeatherData("").City)
}

func TestCurrentDateTool(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	res, err := NewCurrentDateTool(func() time.Time { return fixed }).Call(toolCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, CurrentDate{CurrentDate: "2026-03-14", CurrentTime: "09:26:53"}, res)
}

func TestGoogleSearchTool(t *testing.T) {
	res, err := NewGoogleSearchTool().Call(toolCtx(), map[string]any{"query": "reusable bottles"})
	require.NoError(t, err)

	results := res.(SearchResults)
	assert.Equal(t, "reusable bottles", results.Query)
	assert.Len(t, results.Results, 3)

	_, err = NewGoogleSearchTool().Call(toolCtx(), map[string]any{"query": "  "})
	assert.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		MarketingBudgetName,
		CurrentDateName,
		WeatherDataName,
		GoogleSearchName,
	}, reg.Names())
}
