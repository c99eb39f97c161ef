package route

import (
	"net/http"
	"os"
	"path/filepath"

	"alertcam/internal/config"
	"alertcam/internal/handler"
	"alertcam/internal/logger"
	"alertcam/internal/metrics"
	"alertcam/internal/middleware"
	"alertcam/internal/repository"
	"alertcam/internal/service/websocket"
)

// Dependencies are the services exposed over HTTP.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Hub      *websocket.HubService
	Episodes repository.EpisodeRepository
	Journal  handler.Clearer
	Pipeline handler.StatusProvider
	Metrics  *metrics.Metrics
	Classes  []string
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(d Dependencies) http.Handler {
	mux := http.NewServeMux()
	cfg, log := d.Config, d.Logger

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Hub, log))
	mux.HandleFunc("/api/status", handler.StatusHandler(cfg.CameraName, d.Classes, d.Pipeline, d.Hub, log))
	mux.HandleFunc("/api/episodes", handler.GetEpisodesHandler(d.Episodes, log))
	mux.HandleFunc("/api/episodes/image", handler.ViewEpisodeImageHandler(d.Episodes, log))
	mux.HandleFunc("/api/episodes/stats", handler.GetStatsHandler(d.Episodes, log))
	mux.HandleFunc("/api/episodes/clear", handler.ClearEpisodesHandler(d.Journal, log))

	if cfg.MetricsEnabled && d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg.Password, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /login -> /static/login.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
