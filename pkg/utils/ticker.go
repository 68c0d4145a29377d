package utils

import (
	"strings"
)

// Common company-name aliases users type into the search bar.
var tickerAliases = map[string]string{
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"NVIDIA":    "NVDA",
	"AMAZON":    "AMZN",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"META":      "META",
	"FACEBOOK":  "META",
	"TESLA":     "TSLA",
	"NETFLIX":   "NFLX",
	"BERKSHIRE": "BRK.B",
	"BRK B":     "BRK.B",
	"BRK-B":     "BRK.B",
	"JPMORGAN":  "JPM",
	"JP MORGAN": "JPM",
	"VISA":      "V",
	"WALMART":   "WMT",
	"EXXON":     "XOM",
	"COCA COLA": "KO",
	"COCA-COLA": "KO",
	"AMD":       "AMD",
	"INTEL":     "INTC",
}

// Index aliases map to the names used on the homepage tiles.
var indexTickers = map[string]string{
	"DOW":          "Dow Jones",
	"DJIA":         "Dow Jones",
	"DOW JONES":    "Dow Jones",
	"SPX":          "S&P 500",
	"S&P":          "S&P 500",
	"S&P 500":      "S&P 500",
	"SP500":        "S&P 500",
	"NASDAQ":       "Nasdaq",
	"IXIC":         "Nasdaq",
	"RUT":          "Russell 2000",
	"RUSSELL":      "Russell 2000",
	"RUSSELL 2000": "Russell 2000",
	"VIX":          "VIX",
}

// NormalizeTicker normalizes user input to a canonical ticker.
// It handles aliases, uppercasing, a leading $ and repeated whitespace.
// Unknown input is returned uppercased.
func NormalizeTicker(ticker string) string {
	ticker = strings.Join(strings.Fields(strings.ToUpper(ticker)), " ")

	// Remove $ prefix if present (common in chat)
	ticker = strings.TrimPrefix(ticker, "$")

	if idx, ok := indexTickers[ticker]; ok {
		return idx
	}
	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// IsIndex checks if the input names an index rather than a stock.
func IsIndex(ticker string) bool {
	ticker = NormalizeTicker(ticker)
	for _, v := range indexTickers {
		if v == ticker {
			return true
		}
	}
	return false
}
