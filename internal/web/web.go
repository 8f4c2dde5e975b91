// Package web serves the setup UI, the JSON API, and the /display page that
// the capture pipeline screenshots for the panel.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"epdday/internal/battery"
	"epdday/internal/clock"
	"epdday/internal/config"
	appLog "epdday/internal/log"
	"epdday/internal/model"
	"epdday/internal/occur"
	"epdday/internal/rank"
)

//go:embed templates
var embeddedTemplates embed.FS

// Server provides the HTTP surface: setup form, config/events/battery API,
// display page and preview.
type Server struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string

	clk     clock.Clock
	battery battery.Reader
	mux     *http.ServeMux
	tmpl    *template.Template

	batteryMu    sync.RWMutex
	batteryCache *batteryCache
}

type batteryCache struct {
	status    battery.Status
	updatedAt time.Time
}

// NewServer constructs a Server. configPath is where PUT /api/config and the
// form handlers persist changes.
func NewServer(cfg *config.Config, configPath string, clk clock.Clock, batt battery.Reader) (*Server, error) {
	tmpl, err := template.ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		clk:        clk,
		battery:    batt,
		mux:        http.NewServeMux(),
		tmpl:       tmpl,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler, with basic auth applied when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.snapshot().Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listen := s.snapshot().Listen
	srv := &http.Server{
		Addr:    listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="epdday", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/battery", s.handleBattery)
	s.mux.HandleFunc("/display", s.handleDisplay)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.HandleFunc("/events/add", s.handleEventAdd)
	s.mux.HandleFunc("/events/delete", s.handleEventDelete)
	s.mux.HandleFunc("/", s.handleSetup)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// snapshot returns the current config under the read lock.
func (s *Server) snapshot() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Config exposes the live config so daemon cycles see setup-UI edits.
func (s *Server) Config() *config.Config { return s.snapshot() }

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.snapshot())

	case http.MethodPut:
		var cfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid config JSON: "+err.Error())
			return
		}
		cfg.Normalize()
		if err := s.saveConfig(&cfg); err != nil {
			appLog.Error("config save failed", err, "path", s.configPath)
			writeError(w, http.StatusInternalServerError, "failed to save config")
			return
		}
		writeJSON(w, http.StatusOK, &cfg)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) saveConfig(cfg *config.Config) error {
	if err := config.Save(s.configPath, cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// eventsResponse is the JSON shape for /api/events: the full resolved list
// plus the 3-slot selection the panel would show right now.
type eventsResponse struct {
	Now       time.Time              `json:"now"`
	Lookahead int                    `json:"lookahead_days"`
	Resolved  []model.ResolvedEvent  `json:"resolved"`
	Selection model.DisplaySelection `json:"selection"`
	Skipped   []string               `json:"skipped,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	cfg := s.snapshot()
	now := s.localNow(cfg)

	resolved, skipped := occur.ResolveAll(cfg.Events, now)
	resp := eventsResponse{
		Now:       now,
		Lookahead: cfg.LookaheadDays,
		Resolved:  resolved,
		Selection: rank.Rank(resolved, cfg.LookaheadDays),
	}
	for _, err := range skipped {
		resp.Skipped = append(resp.Skipped, err.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBattery exposes battery status with a short-TTL cache so HTTP
// traffic does not hammer the I2C bus.
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	const batteryCacheTTL = 30 * time.Second
	now := time.Now()

	s.batteryMu.RLock()
	bc := s.batteryCache
	s.batteryMu.RUnlock()
	if bc != nil && now.Sub(bc.updatedAt) < batteryCacheTTL {
		writeJSON(w, http.StatusOK, bc.status)
		return
	}

	status, err := s.battery.Read(r.Context())
	if err != nil {
		appLog.Error("battery read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read battery")
		return
	}

	s.batteryMu.Lock()
	s.batteryCache = &batteryCache{status: status, updatedAt: time.Now()}
	s.batteryMu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

// handlePreview serves the last captured PNG from the state directory.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.snapshot().StateDir, "preview.png"))
}

// displayCard is one slot on the panel.
type displayCard struct {
	Name   string
	Days   int
	Date   string
	Pinned bool
}

type displayPage struct {
	Mode    string // "events", "empty", "message", "setup"
	Cards   []displayCard
	Title   string
	Detail  string
	Date    string
	Battery int // -1 hides the battery line
}

// handleDisplay renders the page the capture pipeline screenshots. Modes:
//
//	/display                          current 3-slot selection
//	/display?mode=message&title=&detail=   status/error screen
//	/display?mode=setup&info=              configuration-mode screen
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	cfg := s.snapshot()
	now := s.localNow(cfg)

	page := displayPage{
		Date:    now.Format("Mon, Jan 2"),
		Battery: -1,
	}

	switch r.URL.Query().Get("mode") {
	case "message":
		page.Mode = "message"
		page.Title = r.URL.Query().Get("title")
		page.Detail = r.URL.Query().Get("detail")

	case "setup":
		page.Mode = "setup"
		page.Title = "Setup mode"
		page.Detail = r.URL.Query().Get("info")

	default:
		resolved, skipped := occur.ResolveAll(cfg.Events, now)
		for _, err := range skipped {
			appLog.Warn("display: event skipped", "err", err)
		}
		selection := rank.Rank(resolved, cfg.LookaheadDays)
		if len(selection) == 0 {
			page.Mode = "empty"
		} else {
			page.Mode = "events"
			for _, re := range selection {
				page.Cards = append(page.Cards, displayCard{
					Name:   re.Def.Name,
					Days:   re.DaysUntil,
					Date:   time.Date(re.Year, time.Month(re.Def.Month), re.Def.Day, 0, 0, 0, 0, now.Location()).Format("Jan 2"),
					Pinned: re.Def.Pinned,
				})
			}
		}
	}

	if cfg.ShowBattery {
		if status, err := s.battery.Read(r.Context()); err == nil {
			page.Battery = status.Percent
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "display.html", page); err != nil {
		appLog.Error("display template failed", err)
	}
}

// setupPage backs the root configuration form.
type setupPage struct {
	Config *config.Config
	Saved  bool
	Error  string
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.renderSetup(w, setupPage{Config: s.snapshot(), Saved: r.URL.Query().Get("saved") == "1"})
}

func (s *Server) renderSetup(w http.ResponseWriter, page setupPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "setup.html", page); err != nil {
		appLog.Error("setup template failed", err)
	}
}

// handleEventAdd accepts the setup form's add-event POST.
func (s *Server) handleEventAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	def, err := eventFromForm(r)
	if err != nil {
		s.renderSetup(w, setupPage{Config: s.snapshot(), Error: err.Error()})
		return
	}

	// Probe the date now so a Feb 30 entry fails at the form, not on the
	// panel.
	if _, rerr := occur.Resolve(def, s.localNow(s.snapshot())); rerr != nil {
		s.renderSetup(w, setupPage{Config: s.snapshot(), Error: rerr.Error()})
		return
	}

	cfg := s.snapshot()
	next := *cfg
	next.Events = append(append([]model.EventDefinition{}, cfg.Events...), def)
	if err := s.saveConfig(&next); err != nil {
		appLog.Error("config save failed", err, "path", s.configPath)
		s.renderSetup(w, setupPage{Config: cfg, Error: "failed to save config"})
		return
	}
	http.Redirect(w, r, "/?saved=1", http.StatusSeeOther)
}

func (s *Server) handleEventDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := r.FormValue("name")
	cfg := s.snapshot()
	next := *cfg
	next.Events = make([]model.EventDefinition, 0, len(cfg.Events))
	for _, def := range cfg.Events {
		if !strings.EqualFold(def.Name, name) {
			next.Events = append(next.Events, def)
		}
	}
	if err := s.saveConfig(&next); err != nil {
		appLog.Error("config save failed", err, "path", s.configPath)
		s.renderSetup(w, setupPage{Config: cfg, Error: "failed to save config"})
		return
	}
	http.Redirect(w, r, "/?saved=1", http.StatusSeeOther)
}

func eventFromForm(r *http.Request) (model.EventDefinition, error) {
	var def model.EventDefinition

	def.Name = strings.TrimSpace(r.FormValue("name"))
	if def.Name == "" {
		return def, errors.New("event name is required")
	}

	month, err := strconv.Atoi(r.FormValue("month"))
	if err != nil || month < 1 || month > 12 {
		return def, errors.New("month must be 1-12")
	}
	day, err := strconv.Atoi(r.FormValue("day"))
	if err != nil || day < 1 || day > 31 {
		return def, errors.New("day must be 1-31")
	}
	def.Month = month
	def.Day = day

	switch r.FormValue("recurrence") {
	case string(model.RecurrenceOneTime):
		def.Recurrence = model.RecurrenceOneTime
		year, err := strconv.Atoi(r.FormValue("year"))
		if err != nil || year < 1970 || year > 9999 {
			return def, errors.New("one-time events need a year")
		}
		def.Year = year
	default:
		def.Recurrence = model.RecurrenceAnnual
	}

	def.Pinned = r.FormValue("pinned") == "on"
	return def, nil
}

// localNow reads the clock in the configured timezone, falling back to the
// clock's own location when the zone name is unknown.
func (s *Server) localNow(cfg *config.Config) time.Time {
	now := s.clk.Now()
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		now = now.In(loc)
	}
	return now
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("json encode failed", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
