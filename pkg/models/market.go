package models

import "time"

// SparkPoint is one value of an index sparkline.
type SparkPoint struct {
	Value float64 `json:"value"`
}

// MarketIndex is a headline index tile (Dow Jones, S&P 500, ...).
type MarketIndex struct {
	Name          string       `json:"name"`
	Value         Text         `json:"value"`
	Change        Text         `json:"change"`
	PercentChange Text         `json:"percentChange"`
	IsPositive    bool         `json:"isPositive"`
	ChartData     []SparkPoint `json:"chartData"` // chronological
}

// NewsArticle is a top story. URL and Source may be replaced by the
// grounding citation paired with the article.
type NewsArticle struct {
	Title           string `json:"title"`
	Source          string `json:"source"`
	Summary         string `json:"summary"`
	URL             string `json:"url"`
	PublicationDate string `json:"publicationDate"`
}

// ScreenerMetric is a named value the user asked the screener about.
type ScreenerMetric struct {
	Name  string `json:"name"`
	Value Text   `json:"value"`
}

// ScreenerResult is one company matched by a natural-language screen.
// Results are ordered by relevance as returned by the model.
type ScreenerResult struct {
	CompanyName string           `json:"companyName"`
	Ticker      string           `json:"ticker"`
	Explanation string           `json:"explanation"`
	Metrics     []ScreenerMetric `json:"metrics"`
}

// LatestUpdate is a short market headline for the homepage ticker.
type LatestUpdate struct {
	Headline   string `json:"headline"`
	Detail     string `json:"detail"`
	Ticker     string `json:"ticker"`
	Change     Text   `json:"change"`
	IsPositive bool   `json:"isPositive"`
	Time       string `json:"time"`
}

// EarningsEntry is an upcoming or recent earnings report.
type EarningsEntry struct {
	CompanyName string `json:"companyName"`
	Ticker      string `json:"ticker"`
	Date        string `json:"date"`
	Timing      string `json:"timing"` // e.g. "Before open", "After close"
	EPSEstimate Text   `json:"epsEstimate"`
	EPSActual   Text   `json:"epsActual"`
	Reported    bool   `json:"reported"`
}

// WatchlistItem is a followed security in the sidebar.
type WatchlistItem struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Price         Text   `json:"price"`
	PercentChange Text   `json:"percentChange"`
	IsPositive    bool   `json:"isPositive"`
}

// SectorQuote is an equity sector performance line in the sidebar.
type SectorQuote struct {
	Name       string `json:"name"`
	Value      Text   `json:"value"`
	Change     Text   `json:"change"`
	IsPositive bool   `json:"isPositive"`
}

// SidebarSnapshot is the left sidebar: watchlist and equity sectors.
type SidebarSnapshot struct {
	Watchlist []WatchlistItem `json:"watchlist"`
	Sectors   []SectorQuote   `json:"sectors"`
}

// DashboardBundle is everything the homepage needs, fetched together.
type DashboardBundle struct {
	Indices         []MarketIndex   `json:"indices"`
	ResearchSummary string          `json:"researchSummary"`
	News            []NewsArticle   `json:"news"`
	LatestUpdates   []LatestUpdate  `json:"latestUpdates"`
	Earnings        []EarningsEntry `json:"earnings"`
	Sidebar         SidebarSnapshot `json:"sidebar"`
	FetchedAt       time.Time       `json:"fetchedAt"`
}
