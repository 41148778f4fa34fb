package httpapi

import (
	"database/sql"
	"net/http"
)

// NewMux registers the health check and static assets. Feature modules add
// their own routes afterwards. A nil broker means MQTT ingest is disabled.
func NewMux(db *sql.DB, staticDir string, broker BrokerStatus) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, broker)
	if staticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	return mux
}
