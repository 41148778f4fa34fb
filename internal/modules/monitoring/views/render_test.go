package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"bikeshare-monitor/internal/modules/monitoring/types"
)

func TestLoadTemplates_success(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// No "templates" directory; ParseFS finds no files.
	err := loadTemplatesFromFS(fstest.MapFS{}, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS) = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/dashboard.html":        {Data: []byte("{{ .")},
		"templates/partials/station.html": {Data: []byte("ok")},
	}
	if err := loadTemplatesFromFS(badFS, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(badFS) = nil; want error")
	}
}

func TestRender_notLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &DashboardData{}); err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("RenderDashboard() = %v; want not loaded error", err)
	}
	if err := RenderStationPartial(&buf, &StationPartialData{}); err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("RenderStationPartial() = %v; want not loaded error", err)
	}
}

func mustLoad(t *testing.T) {
	t.Helper()
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
}

func TestRenderDashboard_withStation(t *testing.T) {
	mustLoad(t)

	data := &DashboardData{
		Stations:          []string{"5905.14", "6140.05"},
		SelectedStationID: "6140.05",
		WindowHours:       48,
		MinWindowHours:    1,
		MaxWindowHours:    672,
		Station: &StationPartialData{
			StationID:   "6140.05",
			WindowHours: 48,
			Summary:     &types.Summary{MeanAbsoluteError: 2, MaxAbsoluteError: 3.456, Count: 2},
		},
	}
	var buf bytes.Buffer
	if err := RenderDashboard(&buf, data); err != nil {
		t.Fatalf("RenderDashboard() = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Monitoring Dashboard",
		`<option value="6140.05" selected>`,
		`<option value="5905.14">`,
		`max="672"`,
		`value="48"`,
		"Station 6140.05",
		"2.00",
		"3.46",
		"/charts/station?station_id=6140.05&amp;window=48",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderDashboard_states(t *testing.T) {
	mustLoad(t)

	tests := []struct {
		name string
		data *DashboardData
		want string
	}{
		{"unavailable", &DashboardData{WindowHours: 24, Unavailable: true}, "currently unavailable"},
		{"no stations", &DashboardData{WindowHours: 24}, "No stations have both observed and predicted rides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderDashboard(&buf, tt.data); err != nil {
				t.Fatalf("RenderDashboard() = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q", tt.want)
			}
		})
	}
}

func TestRenderStationPartial(t *testing.T) {
	mustLoad(t)

	tests := []struct {
		name    string
		data    *StationPartialData
		want    []string
		notWant []string
	}{
		{
			name: "metrics",
			data: &StationPartialData{
				StationID: "S1", WindowHours: 24,
				Summary: &types.Summary{MeanAbsoluteError: 2, MaxAbsoluteError: 3, Count: 2},
			},
			want:    []string{"Average Error", "2.00", "Max Error", "3.00", "Data Points", "<iframe"},
			notWant: []string{NoDataMessage},
		},
		{
			name:    "no data",
			data:    &StationPartialData{StationID: "S1", WindowHours: 1},
			want:    []string{NoDataMessage, "Last 1 h"},
			notWant: []string{"<iframe", "Average Error"},
		},
		{
			name:    "unavailable",
			data:    &StationPartialData{StationID: "S1", WindowHours: 24, Unavailable: true},
			want:    []string{"currently unavailable"},
			notWant: []string{NoDataMessage, "<iframe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderStationPartial(&buf, tt.data); err != nil {
				t.Fatalf("RenderStationPartial() = %v", err)
			}
			out := buf.String()
			if strings.Contains(out, "<html") {
				t.Error("partial rendered the full page")
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q", w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("output unexpectedly contains %q", nw)
				}
			}
		})
	}
}

func TestStationPartialData_ChartURL(t *testing.T) {
	d := StationPartialData{StationID: "a b", WindowHours: 12}
	if got, want := d.ChartURL(), "/charts/station?station_id=a+b&window=12"; got != want {
		t.Errorf("ChartURL() = %q; want %q", got, want)
	}
}
