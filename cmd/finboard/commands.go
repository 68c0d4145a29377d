package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seenimoa/finboard/api"
)

// --- Dashboard Command ---

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Load the full homepage bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		bundle, err := a.agg.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(bundle)
		}
		return writeDashboard(os.Stdout, bundle)
	},
}

// --- Stock Command ---

var stockCmd = &cobra.Command{
	Use:   "stock [query]",
	Short: "Look up one company",
	Long: `Look up one company by ticker or name.

Examples:
  finboard stock AAPL
  finboard stock "berkshire hathaway" --range 1Y`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, _ := cmd.Flags().GetString("range")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.agg.Service().Stock(cmd.Context(), args[0], rng)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(rec)
		}
		return writeStock(os.Stdout, rec)
	},
}

func init() {
	stockCmd.Flags().String("range", "1M", "chart range: 1D, 5D, 1M, 6M, YTD, 1Y, 5Y")
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show today's top market stories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		articles, err := a.agg.Service().News(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(articles)
		}
		return writeNews(os.Stdout, articles)
	},
}

// --- Research Command ---

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Print the market research summary (markdown)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.agg.Service().ResearchSummary(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(api.ResearchResponse{Summary: summary})
		}
		fmt.Println(summary)
		return nil
	},
}

// --- Screen Command ---

var screenCmd = &cobra.Command{
	Use:   "screen [query]",
	Short: "Run a natural-language stock screen",
	Long: `Run a natural-language stock screen. The model's reasoning is printed
to stderr as it arrives; results go to stdout.

Examples:
  finboard screen "profitable small-cap biotech"
  finboard screen "dividend aristocrats yielding over 3%" --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var onReasoning func(string)
		if !quiet {
			onReasoning = func(text string) { fmt.Fprint(os.Stderr, text) }
		}
		results, err := a.agg.Service().Screen(cmd.Context(), args[0], onReasoning)
		if !quiet {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(results)
		}
		return writeScreen(os.Stdout, results)
	},
}

func init() {
	screenCmd.Flags().BoolP("quiet", "q", false, "do not print model reasoning")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := api.NewServer(cfg, a.agg, logger)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting finboard API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "listen port (default from config)")
}
