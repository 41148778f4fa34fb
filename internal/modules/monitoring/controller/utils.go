package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/pkg/messages"

	"github.com/go-playground/validator/v10"
)

const (
	monitorStateCookieName   = "monitor_state"
	monitorStateCookieMaxAge = 30 * 24 * 60 * 60
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	windowRule = fmt.Sprintf("min=%d,max=%d", config.MinWindowHours, config.MaxWindowHours)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Same rule as MQTT ingest, so every catalog id can be selected.
		_ = validate.RegisterValidation("station_id", func(fl validator.FieldLevel) bool {
			return messages.ValidateStationID(fl.Field().String()) == nil
		})
	})
	return validate
}

var errInvalidStationID = fmt.Errorf("invalid station id (expected up to %d characters without control characters)", messages.MaxStationIDLength)

// parseWindowQuery reads ?window= for the API and chart endpoints.
// Missing means defaultWindow; anything else must be an integer in range.
func parseWindowQuery(r *http.Request, defaultWindow int) (int, error) {
	s := r.URL.Query().Get("window")
	if s == "" {
		return defaultWindow, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'window' (expected integer hours)")
	}
	if err := getValidator().Var(n, windowRule); err != nil {
		return 0, fmt.Errorf("'window' must be between %d and %d", config.MinWindowHours, config.MaxWindowHours)
	}
	return n, nil
}

func validateStationID(id string) error {
	if err := getValidator().Var(id, "required,station_id"); err != nil {
		return errInvalidStationID
	}
	return nil
}

// clampWindow forces n into the selectable range, as the dashboard slider does.
func clampWindow(n int) int {
	return min(max(n, config.MinWindowHours), config.MaxWindowHours)
}

// monitorState is the dashboard selection remembered between visits.
type monitorState struct {
	StationID   string
	WindowHours int
}

// readMonitorState returns the zero state for a missing or malformed cookie.
// An unusable window is dropped; an out-of-range one is clamped.
func readMonitorState(r *http.Request) monitorState {
	cookie, err := r.Cookie(monitorStateCookieName)
	if err != nil {
		return monitorState{}
	}
	vals, err := url.ParseQuery(cookie.Value)
	if err != nil {
		return monitorState{}
	}
	state := monitorState{StationID: vals.Get("station_id")}
	if validateStationID(state.StationID) != nil {
		state.StationID = ""
	}
	if n, err := strconv.Atoi(vals.Get("window")); err == nil {
		state.WindowHours = clampWindow(n)
	}
	return state
}

func writeMonitorState(w http.ResponseWriter, state monitorState) {
	vals := url.Values{}
	if state.StationID != "" {
		vals.Set("station_id", state.StationID)
	}
	vals.Set("window", strconv.Itoa(state.WindowHours))
	http.SetCookie(w, &http.Cookie{
		Name:     monitorStateCookieName,
		Value:    vals.Encode(),
		Path:     "/",
		MaxAge:   monitorStateCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// resolveDashboardState picks the selection from query parameters, then the
// cookie, then defaults. The window is clamped rather than rejected.
func resolveDashboardState(r *http.Request, defaultWindow int) monitorState {
	state := readMonitorState(r)
	q := r.URL.Query()

	if id := q.Get("station_id"); id != "" && validateStationID(id) == nil {
		state.StationID = id
	}
	if s := q.Get("window"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			state.WindowHours = clampWindow(n)
		}
	}
	if state.WindowHours == 0 {
		state.WindowHours = clampWindow(defaultWindow)
	}
	return state
}

// selectStation keeps requested when the catalog has it, otherwise falls back
// to the first station. It returns "" for an empty catalog.
func selectStation(stations []string, requested string) string {
	for _, s := range stations {
		if s == requested {
			return s
		}
	}
	if len(stations) > 0 {
		return stations[0]
	}
	return ""
}
