package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

var (
	queryStart  string
	queryEnd    string
	querySets   []string
	queryFormat string
	queryFields string
	queryOmit   string
	queryLimit  int
	queryLocal  bool
	queryMaps   []string
	queryExport string
)

var queryCmd = &cobra.Command{
	Use:   "query <view>",
	Short: "Fetch a view for a date range and print the filtered records",
	Long: `Fetch alerts, logins or users for a date range, narrow them with the same
filters the console offers and print the result. The active-filters line
is written to stderr so stdout stays machine readable.

Times accept RFC3339, YYYY-MM-DD, now, today or offsets like 15m, -2h, +1d.
Filters are facet=value pairs; use an empty value to leave a facet open.
Date-range facets take "MM/DD/YYYY - MM/DD/YYYY".

Examples:
  secwatch query alerts
  secwatch query alerts --start -24h --set alertType=NewDevice --set vip=yes
  secwatch query logins --set search=paris --format json
  secwatch query users --set risk=High --fields user,risk_score --format yaml
  secwatch query alerts --mappings rule_name:type,user:account --export alerts.json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryStart, "start", "", "Range start (default: now minus daterange.default_days)")
	queryCmd.Flags().StringVar(&queryEnd, "end", "", "Range end (default: now)")
	queryCmd.Flags().StringArrayVar(&querySets, "set", nil, "Filter as facet=value (repeatable)")
	queryCmd.Flags().StringVarP(&queryFormat, "format", "o", "table", "Output format: table, json or yaml")
	queryCmd.Flags().StringVar(&queryFields, "fields", "", "Comma-separated fields to print (default: view columns)")
	queryCmd.Flags().StringVar(&queryOmit, "omit", "", "Comma-separated fields to leave out")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Print at most this many records (0 = all)")
	queryCmd.Flags().StringSliceVar(&queryMaps, "mappings", nil, "Rename printed fields as field:alias (comma-separated or repeatable)")
	queryCmd.Flags().StringVar(&queryExport, "export", "", "Write records to this file instead of stdout (.json/.yaml picks the format)")
	queryCmd.Flags().BoolVar(&queryLocal, "local", false, "Read records from the local database instead of the backend")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	format := exportFormat(queryExport, queryFormat, cmd.Flags().Changed("format"))
	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (table, json, yaml)", format)
	}
	aliases, err := parseMappings(queryMaps)
	if err != nil {
		return err
	}

	views, err := loadViews(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger("query")

	var src fetcherSource
	if queryLocal {
		var st *store.Store
		st, err = openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		src = localSource(st)
	} else {
		src, err = backendSource(cfg, logger)
		if err != nil {
			return err
		}
	}

	name := args[0]
	engines, err := buildEngines(views, []string{name}, src, func(string) *log.Logger { return logger })
	if err != nil {
		return err
	}
	e := engines[name]

	r, err := queryRange(queryStart, queryEnd, time.Now(), cfg.DateRange.DefaultDays)
	if err != nil {
		return err
	}
	if err := e.Refresh(ctx, r); err != nil {
		return err
	}
	for _, s := range querySets {
		id, value, err := parseSet(s)
		if err != nil {
			return err
		}
		if err := e.SetFacet(id, value); err != nil {
			return fmt.Errorf("--set %s: %w", s, err)
		}
	}

	recs := e.CurrentView()
	shown := recs
	if queryLimit > 0 && len(shown) > queryLimit {
		shown = shown[:queryLimit]
	}

	errOut := cmd.ErrOrStderr()
	if line := e.Indicator(); line != "" {
		fmt.Fprintln(errOut, line)
	}
	fmt.Fprintf(errOut, "Showing %d of %d %s (%d matched) for %s\n", len(shown), e.Total(), name, len(recs), r)

	fields := selectFields(e.View(), shown, splitList(queryFields), splitList(queryOmit))
	if queryExport == "" {
		return writeRecords(cmd.OutOrStdout(), format, e.View(), shown, fields, aliases)
	}

	f, err := os.Create(queryExport)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := writeRecords(f, format, e.View(), shown, fields, aliases); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	fmt.Fprintf(errOut, "Exported %d records to %s\n", len(shown), queryExport)
	return nil
}

// exportFormat lets an export file's extension pick the format unless
// --format was given explicitly.
func exportFormat(path, format string, explicit bool) string {
	if explicit || path == "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return format
}

// parseMappings reads field:alias pairs into a rename map.
func parseMappings(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		field, alias, ok := strings.Cut(p, ":")
		field, alias = strings.TrimSpace(field), strings.TrimSpace(alias)
		if !ok || field == "" || alias == "" {
			return nil, fmt.Errorf("--mappings %q: expected field:alias", p)
		}
		out[field] = alias
	}
	return out, nil
}

func aliasFor(aliases map[string]string, field string) string {
	if a, ok := aliases[field]; ok {
		return a
	}
	return field
}

// queryRange resolves --start/--end; missing ends default to the last
// defaultDays ending now.
func queryRange(start, end string, now time.Time, defaultDays int) (daterange.Range, error) {
	r := daterange.LastDays(now, defaultDays)
	if strings.TrimSpace(end) != "" {
		t, err := daterange.ParseFlexible(end, now)
		if err != nil {
			return daterange.Range{}, fmt.Errorf("--end: %w", err)
		}
		r = daterange.Range{From: r.From.Add(t.Sub(r.To)), To: t}
	}
	if strings.TrimSpace(start) != "" {
		t, err := daterange.ParseFlexible(start, now)
		if err != nil {
			return daterange.Range{}, fmt.Errorf("--start: %w", err)
		}
		r.From = t
	}
	if err := r.Validate(); err != nil {
		return daterange.Range{}, err
	}
	return r, nil
}

// parseSet splits "facet=value". The value may be empty.
func parseSet(s string) (id, value string, err error) {
	id, value, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", "", fmt.Errorf("--set %q: expected facet=value", s)
	}
	return id, value, nil
}

// selectFields picks the printed fields: explicit ones, else the view's
// columns, minus omitted ones.
func selectFields(v facet.View, recs record.Collection, fields, omit []string) []string {
	if len(fields) == 0 {
		fields = v.Columns
	}
	if len(fields) == 0 {
		seen := map[string]bool{}
		for _, r := range recs {
			for k := range r {
				if !seen[k] {
					seen[k] = true
					fields = append(fields, k)
				}
			}
		}
	}
	drop := make(map[string]bool, len(omit))
	for _, f := range omit {
		drop[f] = true
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !drop[f] {
			out = append(out, f)
		}
	}
	return out
}

func project(recs record.Collection, fields []string, aliases map[string]string) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		m := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, ok := r.Lookup(f); ok {
				m[aliasFor(aliases, f)] = v
			}
		}
		out[i] = m
	}
	return out
}

// writeRecords prints recs in format, renaming fields found in aliases.
func writeRecords(w io.Writer, format string, v facet.View, recs record.Collection, fields []string, aliases map[string]string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(project(recs, fields, aliases))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(project(recs, fields, aliases)); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = strings.ToUpper(aliasFor(aliases, f))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range recs {
		cells := make([]string, len(fields))
		for i, f := range fields {
			cells[i] = tableCell(r, f, v.TimeField)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func tableCell(r record.Record, field, timeField string) string {
	if field == timeField {
		if t, err := r.Time(field); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return "-"
	}
	if b, isBool := v.(bool); isBool {
		if b {
			return "yes"
		}
		return "no"
	}
	if s, ok := record.Stringify(v); ok {
		return strings.ReplaceAll(s, "\t", " ")
	}
	return fmt.Sprint(v)
}
