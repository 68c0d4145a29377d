// Package prompts contains the instruction templates sent to the AI backend
// for every dashboard widget. Each template names the JSON shape the answer
// must follow; the answer is still treated as free text and run through the
// extractor.
package prompts

import (
	"fmt"
	"strings"

	"github.com/seenimoa/finboard/pkg/models"
	"github.com/seenimoa/finboard/pkg/utils"
)

// SparklinePoints is the number of sparkline values requested per index.
const SparklinePoints = 20

// MaxNewsStories is the number of top stories requested.
const MaxNewsStories = 3

// MaxScreenerResults caps the companies a screen may return.
const MaxScreenerResults = 5

// Indices tracked on the homepage, in display order.
var Indices = []string{"Dow Jones", "S&P 500", "Nasdaq", "Russell 2000", "VIX"}

// ── Market Summary ──

// MarketSummary asks for the headline index tiles.
func MarketSummary() string {
	return fmt.Sprintf(`Provide a real-time market summary for the following major US indices: %s.
Use Google Search to get the latest data.
For each index, provide the name, current value, point change, percentage change, and an array of %d plausible recent data points for a sparkline chart.

Return the data as a valid JSON array matching this structure:
[
  {
    "name": "string",
    "value": "string",
    "change": "string",
    "percentChange": "string",
    "isPositive": boolean,
    "chartData": [{ "value": number }]
  }
]`, joinNames(Indices), SparklinePoints)
}

// ── Stock Overview ──

// StockOverview asks for a single company's quote, stats, narrative and a
// price series covering rng. Index queries skip the per-share fields.
func StockOverview(query string, rng models.TimeRange) string {
	series := "Provide one data point representing the closing price for each trading day in that period."
	if rng.Intraday() {
		series = "Provide intraday data points (e.g., every 5-15 minutes) for the most recent trading day."
	}
	subject := "stock"
	if utils.IsIndex(query) {
		subject = "market index"
		series += `
This is an index, not a company: return empty strings for "marketCap", "peRatio" and "dividendYield".`
	}

	return fmt.Sprintf(`Provide a detailed, real-time %[3]s overview for "%[1]s". Use Google Search to get the latest, most accurate data.
Provide historical price data for the specified time range: %[2]s.

The data must be accurate and directly correspond to the requested time frame.
%[4]s

Provide an array of approximately 30-60 data points suitable for the "%[2]s" time range.
The "dateTime" property must be a valid ISO 8601 timestamp string.
Include a 2-3 sentence AI-powered summary of the recent performance and market outlook.

Return the data as a single valid JSON object matching this structure:
{
  "companyName": "string",
  "ticker": "string",
  "price": "string",
  "change": "string",
  "percentChange": "string",
  "isPositive": boolean,
  "marketCap": "string",
  "peRatio": "string",
  "dividendYield": "string",
  "open": "string",
  "high": "string",
  "low": "string",
  "analysis": "string",
  "chartData": [{ "dateTime": "string", "price": number }]
}`, sanitize(query), rng, subject, series)
}

// ── Research Summary ──

// ResearchSummary asks for a markdown narrative. The answer is used as text,
// not JSON.
func ResearchSummary() string {
	return `Act as a financial analyst. Provide a detailed but concise summary of "What's going on with the markets today?".
Use Google Search to get up-to-the-minute information.
Start with a 2-3 sentence overview.
Then, provide a bulleted list of 3-4 key takeaways from today's trading. Use a hyphen (-) for bullet points.
Format the response as a single block of text using markdown.`
}

// ── News ──

// MarketNews asks for the top stories. Links come from grounding citations,
// so the model is not asked for URLs.
func MarketNews() string {
	return fmt.Sprintf(`Act as a financial news editor. Use Google Search to find the top %d most important financial news stories right now.
For each story, provide a title, the source name (e.g., Bloomberg, Reuters), a 1-sentence summary, and the publication date as an ISO 8601 string.

Return the data as a valid JSON array matching this structure:
[
  {
    "title": "string",
    "source": "string",
    "summary": "string",
    "publicationDate": "string"
  }
]`, MaxNewsStories)
}

// ── Screener ──

// Screener asks for companies matching a natural-language criterion.
func Screener(query string) string {
	return fmt.Sprintf(`Act as an expert financial analyst. The user wants to screen for stocks based on the following criteria: "%s".
Use Google Search to find up to %d publicly traded companies that best match this request.
For each company, provide:
1.  The company name and its ticker symbol.
2.  An array of the key metrics the user asked for (e.g., P/E Ratio, Dividend Yield, Market Cap).
3.  A concise, 1-2 sentence explanation of why this company fits the user's criteria.

Return the data as a single valid JSON array matching this structure:
[
  {
    "companyName": "string",
    "ticker": "string",
    "explanation": "string",
    "metrics": [{ "name": "string", "value": "string" }]
  }
]
Do not include any text outside of the JSON array.`, sanitize(query), MaxScreenerResults)
}

// sanitize keeps user text on one line and out of the template's quotes.
func sanitize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, `"`, "'")
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
}
