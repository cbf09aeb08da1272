package facet

import (
	"fmt"
	"sort"
)

// View names shared by the backend API, the store and the console.
const (
	ViewAlerts = "alerts"
	ViewUsers  = "users"
	ViewLogins = "logins"
)

// View describes one filterable page: where its records come from, which
// field carries its timestamp and which facets it exposes.
type View struct {
	Name      string
	Title     string
	Endpoint  string
	TimeField string
	Columns   []string
	Facets    Set
}

// DefaultViews returns the built-in view definitions, keyed by name.
func DefaultViews() map[string]View {
	return map[string]View{
		ViewAlerts: {
			Name:      ViewAlerts,
			Title:     "Alerts",
			Endpoint:  "api/alerts/",
			TimeField: "timestamp",
			Columns:   []string{"timestamp", "triggered_by", "rule_name", "rule_desc", "country", "severity_type", "is_vip", "notified"},
			Facets: Set{
				{ID: "search", Kind: Keyword, FieldPath: SearchAll, Label: "Search"},
				{ID: "alertType", Kind: Categorical, FieldPath: "rule_name", Label: "Type"},
				{ID: "severity", Kind: Categorical, FieldPath: "severity_type", Label: "Severity"},
				{ID: "country", Kind: Categorical, FieldPath: "country", Label: "Country"},
				{ID: "vip", Kind: Boolean, FieldPath: "is_vip", Label: "VIP"},
				{ID: "notified", Kind: Boolean, FieldPath: "notified", Label: "Notified"},
				{ID: "dateRange", Kind: DateRange, FieldPath: "timestamp", Label: "Date"},
			},
		},
		ViewUsers: {
			Name:      ViewUsers,
			Title:     "Users",
			Endpoint:  "api/users/",
			TimeField: "last_login",
			Columns:   []string{"user", "last_login", "risk_score", "logins_num", "alerts_num"},
			Facets: Set{
				{ID: "search", Kind: Keyword, FieldPath: "user", Label: "User"},
				{ID: "risk", Kind: Categorical, FieldPath: "risk_score", Label: "Risk"},
				{ID: "dateRange", Kind: DateRange, FieldPath: "last_login", Label: "Last login"},
			},
		},
		ViewLogins: {
			Name:      ViewLogins,
			Title:     "Logins",
			Endpoint:  "api/logins/",
			TimeField: "timestamp",
			Columns:   []string{"timestamp", "user", "country", "ip", "user_agent", "latitude", "longitude"},
			Facets: Set{
				{ID: "search", Kind: Keyword, FieldPath: SearchAll, Label: "Search"},
				{ID: "country", Kind: Categorical, FieldPath: "country", Label: "Country"},
				{ID: "user", Kind: Categorical, FieldPath: "user", Label: "User"},
				{ID: "agent", Kind: Keyword, FieldPath: "user_agent", Label: "Agent"},
				{ID: "dateRange", Kind: DateRange, FieldPath: "timestamp", Label: "Date"},
			},
		},
	}
}

// ViewNames returns the built-in view names in display order.
func ViewNames() []string {
	return []string{ViewAlerts, ViewLogins, ViewUsers}
}

// LookupView returns a built-in view or an error listing valid names.
func LookupView(views map[string]View, name string) (View, error) {
	if v, ok := views[name]; ok {
		return v, nil
	}
	names := make([]string, 0, len(views))
	for n := range views {
		names = append(names, n)
	}
	sort.Strings(names)
	return View{}, fmt.Errorf("unknown view %q (valid: %v)", name, names)
}
