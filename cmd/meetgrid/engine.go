package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"meetgrid/internal/availability"
	"meetgrid/internal/clock"
	"meetgrid/internal/expand"
	"meetgrid/internal/grid"
	"meetgrid/internal/ics"
	appLog "meetgrid/internal/log"
	"meetgrid/internal/model"
)

// Flags shared by the offline subcommands.
var (
	timesFlag   []string
	nowFlag     string
	weeksFlag   int
	lenientFlag bool
	eventFlag   string
	tzFlag      string
	localeFlag  string
	formatFlag  string
	nameFlag    string
	outputFlag  string
)

var expandCmd = &cobra.Command{
	Use:     "expand",
	Short:   "Expand slot tokens into concrete UTC instants",
	Example: "  meetgrid expand --times 0900-1,1430-17112025 --now 2025-11-12T10:00:00Z --weeks 4",
	RunE:    runExpand,
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Lay out expanded slots as a day/time grid in a display timezone",
	RunE:  runTable,
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Count who is available at each slot of an event",
	Long:  "Reads an event (JSON or YAML, \"-\" for stdin) with its people and prints per-slot availability.",
	RunE:  runAggregate,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write slots as an iCalendar file",
	RunE:  runExport,
}

func init() {
	for _, c := range []*cobra.Command{expandCmd, tableCmd, aggregateCmd, exportCmd} {
		c.Flags().StringSliceVar(&timesFlag, "times", nil, "Comma-separated slot tokens")
		c.Flags().StringVar(&eventFlag, "event", "", "Event file (JSON or YAML); its times are used when --times is empty")
		c.Flags().StringVar(&nowFlag, "now", "", "Reference time for weekday tokens (RFC3339, default: current time)")
		c.Flags().IntVar(&weeksFlag, "weeks", -1, "Weekly repeats after the first occurrence (default: from config)")
		c.Flags().BoolVar(&lenientFlag, "lenient", false, "Skip malformed tokens instead of failing")
		rootCmd.AddCommand(c)
	}

	tableCmd.Flags().StringVar(&tzFlag, "tz", "", "Display timezone (IANA name, default: event or config)")
	tableCmd.Flags().StringVar(&localeFlag, "locale", "", "Display locale, e.g. en-US or de-DE")
	tableCmd.Flags().StringVar(&formatFlag, "format", "", "Time format: 12h or 24h")

	exportCmd.Flags().StringVar(&nameFlag, "name", "", "Calendar and event name")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "-", "Output file, \"-\" for stdout")
}

// readEvent loads an event from path; "-" reads stdin. Files ending in
// .yaml/.yml are decoded as YAML, everything else as JSON.
func readEvent(path string) (model.Event, error) {
	var ev model.Event
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return ev, fmt.Errorf("read event: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ev)
	default:
		err = json.Unmarshal(data, &ev)
	}
	if err != nil {
		return ev, fmt.Errorf("decode event %s: %w", path, err)
	}
	return ev, nil
}

// input resolves the tokens, optional event, reference time and options
// from the flags and config.
func input() ([]string, model.Event, time.Time, expand.Options, error) {
	var ev model.Event
	if eventFlag != "" {
		var err error
		if ev, err = readEvent(eventFlag); err != nil {
			return nil, ev, time.Time{}, expand.Options{}, err
		}
	}
	tokens := timesFlag
	if len(tokens) == 0 {
		tokens = ev.Times
	}

	now := clock.NewSystem().Now()
	if nowFlag != "" {
		t, err := time.Parse(time.RFC3339, nowFlag)
		if err != nil {
			return nil, ev, now, expand.Options{}, fmt.Errorf("invalid --now: %w", err)
		}
		now = t.UTC()
	}

	opts := expand.Options{WindowWeeks: cfg.WindowWeeks, Mode: expand.Strict}
	if weeksFlag >= 0 {
		opts.WindowWeeks = weeksFlag
	}
	if lenientFlag || !cfg.StrictTokens {
		opts.Mode = expand.Lenient
	}
	return tokens, ev, now, opts, nil
}

func expandInput() (expand.Result, model.Event, time.Time, expand.Options, error) {
	tokens, ev, now, opts, err := input()
	if err != nil {
		return expand.Result{}, ev, now, opts, err
	}
	res, err := expand.Expand(tokens, now, opts)
	if err != nil {
		return res, ev, now, opts, err
	}
	for _, sk := range res.Skipped {
		appLog.Info("skipped malformed token", "token", sk.Token, "err", sk.Err)
	}
	appLog.Debug("expanded", "tokens", len(tokens), "instants", len(res.Instants), "now", now, "mode", opts.Mode.String())
	return res, ev, now, opts, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runExpand(cmd *cobra.Command, args []string) error {
	res, _, _, _, err := expandInput()
	if err != nil {
		return err
	}
	type skipped struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	out := struct {
		Instants []expand.Instant `json:"instants"`
		Skipped  []skipped        `json:"skipped,omitempty"`
	}{Instants: res.Instants}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, skipped{Token: sk.Token, Error: sk.Err.Error()})
	}
	return printJSON(out)
}

func runTable(cmd *cobra.Command, args []string) error {
	res, ev, _, _, err := expandInput()
	if err != nil {
		return err
	}

	tz := firstNonEmpty(tzFlag, ev.Timezone, cfg.Timezone)
	loc, err := grid.LoadLocation(tz)
	if err != nil {
		return err
	}
	tf, err := grid.ParseTimeFormat(firstNonEmpty(formatFlag, cfg.TimeFormat))
	if err != nil {
		return err
	}
	tbl, err := grid.Build(res.Instants, grid.Options{
		Locale:     firstNonEmpty(localeFlag, cfg.Locale),
		TimeFormat: tf,
		Location:   loc,
	})
	if err != nil {
		return err
	}
	return printJSON(tbl)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if eventFlag == "" {
		return fmt.Errorf("--event is required")
	}
	res, ev, now, opts, err := expandInput()
	if err != nil {
		return err
	}
	agg, err := availability.Aggregate(res.Instants, ev.People, now, opts)
	if err != nil {
		return err
	}
	appLog.Debug("aggregated", "event", ev.Name, "people", len(ev.People), "min", agg.Min, "max", agg.Max)
	return printJSON(struct {
		Event  string   `json:"event,omitempty"`
		People []string `json:"people"`
		availability.Result
	}{Event: ev.Name, People: ev.Names(), Result: agg})
}

func runExport(cmd *cobra.Command, args []string) error {
	res, ev, now, _, err := expandInput()
	if err != nil {
		return err
	}
	body := ics.Export(res.Instants, ics.ExportOptions{
		Name:       firstNonEmpty(nameFlag, ev.Name),
		SlotLength: cfg.SlotLength(),
		Stamp:      now,
	})
	if outputFlag == "" || outputFlag == "-" {
		_, err = os.Stdout.Write(body)
		return err
	}
	if err := os.WriteFile(outputFlag, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputFlag, err)
	}
	appLog.Info("exported slots", "path", outputFlag, "slots", len(res.Instants))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
