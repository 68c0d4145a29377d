package prompts

import "fmt"

// ── Homepage widgets ──

// Sectors listed in the sidebar, in display order.
var Sectors = []string{"Materials", "Communications", "Energy", "Industrials", "Financials", "Technology"}

// Watchlist is the default set of followed tickers.
var Watchlist = []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL"}

// LatestUpdates asks for short market headlines for the homepage ticker.
func LatestUpdates() string {
	return `Act as a markets desk editor. Use Google Search to find the 5 most recent notable US market moves from today (single stocks, sectors or macro releases).
For each, provide a short headline, one sentence of detail, the related ticker if there is one (otherwise an empty string), the move as a signed percentage string, whether the move is positive, and the local time of the update as an ISO 8601 string.

Return the data as a valid JSON array matching this structure:
[
  {
    "headline": "string",
    "detail": "string",
    "ticker": "string",
    "change": "string",
    "isPositive": boolean,
    "time": "string"
  }
]`
}

// Earnings asks for this week's notable earnings reports.
func Earnings() string {
	return `Use Google Search to find up to 6 notable US companies reporting earnings this week.
For each, provide the company name, ticker, report date as YYYY-MM-DD, timing ("Before open" or "After close"), the consensus EPS estimate, the actual EPS if already reported (otherwise an empty string), and whether the company has already reported.

Return the data as a valid JSON array matching this structure:
[
  {
    "companyName": "string",
    "ticker": "string",
    "date": "string",
    "timing": "string",
    "epsEstimate": "string",
    "epsActual": "string",
    "reported": boolean
  }
]`
}

// Sidebar asks for the watchlist quotes and the equity sector lines.
func Sidebar() string {
	return fmt.Sprintf(`Use Google Search to get the latest quotes.
1. For each of these tickers: %s, provide the ticker, company name, last price, percentage change and whether the change is positive.
2. For each of these S&P 500 equity sectors: %s, provide the sector name, index level, percentage change and whether the change is positive.

Return the data as a single valid JSON object matching this structure:
{
  "watchlist": [{ "ticker": "string", "name": "string", "price": "string", "percentChange": "string", "isPositive": boolean }],
  "sectors": [{ "name": "string", "value": "string", "change": "string", "isPositive": boolean }]
}`, joinNames(Watchlist), joinNames(Sectors))
}
