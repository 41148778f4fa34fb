package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strconv"

	"bikeshare-monitor/internal/modules/monitoring/types"
)

var dashboardTmpl *template.Template

var errNotLoaded = errors.New("dashboard template not loaded: call views.LoadTemplates during startup")

// NoDataMessage is shown when a station has no joined records in the window.
const NoDataMessage = "No data for this station in the selected window."

// loadTemplatesFromFS parses the page and partial templates under dir.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"fixed2": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	}).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup; if it
// fails, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// StationPartialData is the view model for one station's metrics and charts.
type StationPartialData struct {
	StationID   string
	WindowHours int
	Summary     *types.Summary
	// Unavailable is set when the data sources could not be read.
	Unavailable bool
}

// NoData reports whether the no-data notice replaces metrics and charts.
func (d StationPartialData) NoData() bool {
	return !d.Unavailable && d.Summary == nil
}

func (d StationPartialData) NoDataMessage() string {
	return NoDataMessage
}

// ChartURL is the iframe source for the station's charts.
func (d StationPartialData) ChartURL() string {
	q := url.Values{}
	q.Set("station_id", d.StationID)
	q.Set("window", strconv.Itoa(d.WindowHours))
	return "/charts/station?" + q.Encode()
}

type DashboardData struct {
	Stations          []string
	SelectedStationID string
	WindowHours       int
	MinWindowHours    int
	MaxWindowHours    int
	Station           *StationPartialData
	// Unavailable is set when the station catalog could not be loaded.
	Unavailable bool
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errNotLoaded
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderStationPartial executes only the station partial, for HTMX swaps.
func RenderStationPartial(w io.Writer, data *StationPartialData) error {
	if dashboardTmpl == nil {
		return errNotLoaded
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/station.html", data)
}
