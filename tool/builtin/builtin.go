// Package builtin provides the marketing tools bundled with campaignmesh.
// Weather and search return mock data.
package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/tool"
)

// Tool names.
const (
	CurrentDateName     = "get_current_date"
	WeatherDataName     = "get_weather_data"
	MarketingBudgetName = "calculate_marketing_budget"
	GoogleSearchName    = "google_search"
)

// DefaultCity is used by get_weather_data when no city is given.
const DefaultCity = "Islamabad"

// CurrentDate is the output of get_current_date.
type CurrentDate struct {
	CurrentDate string `json:"current_date"`
	CurrentTime string `json:"current_time"`
}

// WeatherInput is the input of get_weather_data.
type WeatherInput struct {
	City string `json:"city,omitempty" description:"City to report the weather for" default:"Islamabad"`
}

// Weather is the output of get_weather_data.
type Weather struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
}

// BudgetInput is the input of calculate_marketing_budget.
type BudgetInput struct {
	Revenue    float64 `json:"revenue" description:"Revenue the budget is derived from"`
	Percentage float64 `json:"percentage,omitempty" description:"Share of revenue to spend on marketing" default:"10.0"`
}

// Budget is the output of calculate_marketing_budget.
type Budget struct {
	Revenue           float64 `json:"revenue"`
	Percentage        float64 `json:"percentage"`
	RecommendedBudget float64 `json:"recommended_budget"`
	MonthlyBudget     float64 `json:"monthly_budget"`
}

// SearchInput is the input of google_search.
type SearchInput struct {
	Query string `json:"query" description:"Search query"`
}

// SearchResult is one hit returned by google_search.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// SearchResults is the output of google_search.
type SearchResults struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// Options configures the builtin tools.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// GetCurrentDate reports the current local date and time.
func GetCurrentDate(now time.Time) CurrentDate {
	return CurrentDate{
		CurrentDate: now.Format("2006-01-02"),
		CurrentTime: now.Format("15:04:05"),
	}
}

// GetWeatherData returns the mock weather record for city. The city is
// echoed as given; the Islamabad default applies only when the tool is
// called without a city.
func GetWeatherData(city string) Weather {
	return Weather{City: city, Temperature: "25°C", Condition: "Sunny", Humidity: "60%"}
}

// CalculateMarketingBudget derives a yearly and monthly budget as a share
// of revenue.
func CalculateMarketingBudget(revenue, percentage float64) Budget {
	recommended := revenue * percentage / 100

	return Budget{
		Revenue:           revenue,
		Percentage:        percentage,
		RecommendedBudget: recommended,
		MonthlyBudget:     recommended / 12,
	}
}

// NewCurrentDateTool builds get_current_date.
func NewCurrentDateTool(now func() time.Time) tool.Tool {
	if now == nil {
		now = time.Now
	}

	return tool.NewTypedTool(CurrentDateName, "Get the current date and time",
		func(_ *core.ToolContext, _ struct{}) (CurrentDate, error) {
			return GetCurrentDate(now()), nil
		})
}

// NewWeatherDataTool builds get_weather_data.
func NewWeatherDataTool() tool.Tool {
	return tool.NewTypedTool(WeatherDataName, "Get current weather for a city (mock data)",
		func(_ *core.ToolContext, in WeatherInput) (Weather, error) {
			return GetWeatherData(in.City), nil
		})
}

// NewMarketingBudgetTool builds calculate_marketing_budget.
func NewMarketingBudgetTool() tool.Tool {
	return tool.NewTypedTool(MarketingBudgetName, "Calculate recommended marketing budget based on revenue",
		func(_ *core.ToolContext, in BudgetInput) (Budget, error) {
			return CalculateMarketingBudget(in.Revenue, in.Percentage), nil
		})
}

// NewGoogleSearchTool builds google_search. Results are synthesised from
// the query.
func NewGoogleSearchTool() tool.Tool {
	return tool.NewTypedTool(GoogleSearchName, "Search the web for market information (mock results)",
		func(tc *core.ToolContext, in SearchInput) (SearchResults, error) {
			q := strings.TrimSpace(in.Query)
			if q == "" {
				return SearchResults{}, fmt.Errorf("query must not be empty")
			}

			tc.LogDebug("tool.google_search.query", "query", q)

			slug := strings.ReplaceAll(strings.ToLower(q), " ", "-")

			return SearchResults{
				Query: q,
				Results: []SearchResult{
					{Title: q + ": market overview", Snippet: "Demand for " + q + " is growing among sustainability minded buyers.", URL: "https://example.com/market/" + slug},
					{Title: q + ": competitor landscape", Snippet: "Established brands compete on price; newcomers compete on design and story.", URL: "https://example.com/competitors/" + slug},
					{Title: q + ": audience insights", Snippet: "Core audience is 25 to 40 year old urban professionals active on social media.", URL: "https://example.com/audience/" + slug},
				},
			}, nil
		})
}

// Tools returns every builtin tool.
func Tools(opts Options) []tool.Tool {
	return []tool.Tool{
		NewCurrentDateTool(opts.Now),
		NewWeatherDataTool(),
		NewMarketingBudgetTool(),
		NewGoogleSearchTool(),
	}
}

// NewRegistry returns a registry holding every builtin tool.
func NewRegistry(opts Options) (*tool.Registry, error) {
	return tool.NewRegistry(Tools(opts)...)
}
