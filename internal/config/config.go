package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"consulting-calendar/internal/calendar"
	"consulting-calendar/internal/guard"
)

// StaticToken is a fixed bearer token bound to an identity.
type StaticToken struct {
	Token  string
	Role   string
	UserID string
}

// Display holds the settings read from the optional YAML file.
type Display struct {
	// CellDisplayCount is how many appointments a grid day shows before
	// collapsing the rest into "+N more".
	CellDisplayCount int               `yaml:"cell_display_count" json:"cell_display_count"`
	TypeColors       map[string]string `yaml:"type_colors" json:"type_colors"`
	LoginRoute       string            `yaml:"login_route" json:"login_route"`
	AdminRoute       string            `yaml:"admin_route" json:"admin_route"`
	DashboardRoute   string            `yaml:"dashboard_route" json:"dashboard_route"`
}

// Google holds the Google Calendar import settings.
type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenFile    string
	CalendarID   string
	EngineerID   string
}

// Config centralises all environment and runtime configuration.
type Config struct {
	ListenAddr   string
	DatabaseURL  string
	AutoMigrate  bool
	JWTSecret    string
	StaticTokens []StaticToken
	LogLevel     string
	Timezone     string
	Google       Google
	Display      Display
}

func DefaultDisplay() Display {
	r := guard.DefaultRoutes()
	return Display{
		CellDisplayCount: calendar.DefaultDisplayCount,
		TypeColors: map[string]string{
			"consultation": "#1565c0",
			"onsite":       "#2e7d32",
			"audit":        "#ef6c00",
			"external":     "#757575",
		},
		LoginRoute:     r.Login,
		AdminRoute:     r.Admin,
		DashboardRoute: r.Dashboard,
	}
}

// Normalize fills in missing values with defaults.
func (d *Display) Normalize() {
	def := DefaultDisplay()
	if d.CellDisplayCount <= 0 {
		d.CellDisplayCount = def.CellDisplayCount
	}
	if d.TypeColors == nil {
		d.TypeColors = def.TypeColors
	}
	if d.LoginRoute == "" {
		d.LoginRoute = def.LoginRoute
	}
	if d.AdminRoute == "" {
		d.AdminRoute = def.AdminRoute
	}
	if d.DashboardRoute == "" {
		d.DashboardRoute = def.DashboardRoute
	}
}

func (d Display) Routes() guard.Routes {
	return guard.Routes{Login: d.LoginRoute, Admin: d.AdminRoute, Dashboard: d.DashboardRoute}
}

func (d Display) RenderOptions() calendar.RenderOptions {
	return calendar.RenderOptions{DisplayCount: d.CellDisplayCount, TypeColors: d.TypeColors}
}

// Load reads .env (if present), the environment, and the YAML file named by
// CONFIG_FILE. A missing YAML file means defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  listenAddr(),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: parseBool(os.Getenv("AUTO_MIGRATE")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_HMAC_SECRET")),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "INFO"),
		Timezone:    getEnvOrDefault("TIMEZONE", "UTC"),
		Google: Google{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
			TokenFile:    getEnvOrDefault("GOOGLE_TOKEN_FILE", "var/google-token.json"),
			CalendarID:   getEnvOrDefault("GOOGLE_CALENDAR_ID", "primary"),
			EngineerID:   os.Getenv("GOOGLE_ENGINEER_ID"),
		},
	}

	tokens, err := ParseStaticTokens(os.Getenv("STATIC_TOKENS"))
	if err != nil {
		return nil, err
	}
	cfg.StaticTokens = tokens

	display, err := LoadDisplay(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Display = display
	return cfg, nil
}

// LoadDisplay reads display settings from a YAML file. An empty path or a
// missing file yields defaults.
func LoadDisplay(path string) (Display, error) {
	d := DefaultDisplay()
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return d, err
	}

	var fromFile Display
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return d, fmt.Errorf("parse %s: %w", path, err)
	}
	fromFile.Normalize()
	return fromFile, nil
}

// ParseStaticTokens parses "token:role:userid" entries separated by commas.
func ParseStaticTokens(raw string) ([]StaticToken, error) {
	var out []StaticToken
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid STATIC_TOKENS entry (want token:role:userid)")
		}
		out = append(out, StaticToken{Token: parts[0], Role: parts[1], UserID: parts[2]})
	}
	return out, nil
}

func listenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func getEnvOrDefault(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
