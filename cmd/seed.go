package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/ingest"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

var (
	seedCount int
	seedDays  int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed sample alerts, logins and users into the database",
	Long: `Seed deterministic sample alerts, logins and users into the SQLite
database, spread over the last --days days. The same --seed value always
produces the same records relative to now. Useful for local testing of the
console and the query command.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedCount, "count", 50, "Number of alerts and logins to create")
	seedCmd.Flags().IntVar(&seedDays, "days", 7, "Spread records over this many days ending now")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 1, "Random seed")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := GetConfig()
	logger := newLogger("seed")
	logger.Println("Seeding sample data...")

	views, err := loadViews(viper.GetViper())
	if err != nil {
		return err
	}
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	updates := bus.NewBus(cfg.Redis.URL, newLogger("bus"))
	defer updates.Close()
	sink := ingest.NewSink(st, updates, views, logger)

	data := sampleData(time.Now().UTC(), seedCount, seedDays, seedValue)
	for _, kind := range facet.ViewNames() {
		res, err := sink.Ingest(ctx, kind, "seed", data[kind])
		if err != nil {
			return fmt.Errorf("seed %s: %w", kind, err)
		}
		logger.Printf("Seeded %d %s (%d skipped)", res.Saved, kind, res.Skipped)
	}
	logger.Println("Seeding complete")
	return nil
}

type seedUser struct {
	name    string
	risk    string
	vip     bool
	country string
}

var (
	seedUsers = []seedUser{
		{"alice@corp.example", "High", true, "FR"},
		{"bob@corp.example", "Medium", false, "US"},
		{"carol@corp.example", "Low", false, "GB"},
		{"dave@corp.example", "No risk", false, "US"},
		{"erin@corp.example", "Medium", true, "DE"},
		{"frank@corp.example", "No risk", false, "CA"},
	}
	seedRules = []struct{ name, desc, severity string }{
		{"New Device", "Login from a device not seen for this user", "Low"},
		{"Imp Travel", "Two logins too far apart to travel between", "High"},
		{"New Country", "Login from a country not seen for this user", "Medium"},
		{"User Risk Threshold", "User risk score crossed the alert threshold", "High"},
		{"Login Anonymizer Ip", "Login through a VPN, proxy or Tor exit", "Medium"},
		{"Atypical Country", "Login from a country rarely seen in the org", "Low"},
	}
	seedCountries = []string{"US", "FR", "GB", "DE", "CA", "BR", "JP", "NG"}
	seedAgents    = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Firefox/128.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) Chrome/126.0",
		"Outlook-iOS/2.0",
	}
)

// sampleData builds count alerts and logins plus one record per user, with
// timestamps spread over the days before now.
func sampleData(now time.Time, count, days int, seed int64) map[string]record.Collection {
	if days <= 0 {
		days = 7
	}
	rng := rand.New(rand.NewSource(seed))
	span := int64(time.Duration(days) * 24 * time.Hour / time.Second)
	at := func() time.Time { return now.Add(-time.Duration(rng.Int63n(span)) * time.Second) }

	out := map[string]record.Collection{}
	lastLogin := map[string]time.Time{}
	loginCount := map[string]int{}
	alertCount := map[string]int{}

	for i := 0; i < count; i++ {
		u := seedUsers[rng.Intn(len(seedUsers))]
		country := u.country
		if rng.Intn(3) == 0 {
			country = seedCountries[rng.Intn(len(seedCountries))]
		}
		ts := at()
		out[facet.ViewLogins] = append(out[facet.ViewLogins], record.Record{
			"id":         fmt.Sprintf("login-%d-%04d", seed, i),
			"timestamp":  ts.Format(time.RFC3339),
			"user":       u.name,
			"country":    country,
			"ip":         fmt.Sprintf("203.0.113.%d", rng.Intn(254)+1),
			"user_agent": seedAgents[rng.Intn(len(seedAgents))],
			"latitude":   float64(rng.Intn(18000)-9000) / 100,
			"longitude":  float64(rng.Intn(36000)-18000) / 100,
		})
		loginCount[u.name]++
		if ts.After(lastLogin[u.name]) {
			lastLogin[u.name] = ts
		}

		rule := seedRules[rng.Intn(len(seedRules))]
		alert := record.Record{
			"id":            fmt.Sprintf("alert-%d-%04d", seed, i),
			"timestamp":     at().Format(time.RFC3339),
			"triggered_by":  u.name,
			"rule_name":     rule.name,
			"rule_desc":     rule.desc,
			"severity_type": rule.severity,
			"is_vip":        u.vip,
			"notified":      rng.Intn(2) == 0,
		}
		// Some alerts carry no country; they drop out of country filters.
		if rng.Intn(5) != 0 {
			alert["country"] = country
		}
		out[facet.ViewAlerts] = append(out[facet.ViewAlerts], alert)
		alertCount[u.name]++
	}

	for _, u := range seedUsers {
		last := lastLogin[u.name]
		if last.IsZero() {
			last = at()
		}
		out[facet.ViewUsers] = append(out[facet.ViewUsers], record.Record{
			"id":         u.name,
			"user":       u.name,
			"last_login": last.Format(time.RFC3339),
			"risk_score": u.risk,
			"logins_num": loginCount[u.name],
			"alerts_num": alertCount[u.name],
		})
	}
	return out
}
