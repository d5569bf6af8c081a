package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Errores de configuración. Son fatales antes de arrancar el loop.
var (
	ErrInvalidRange       = errors.New("config: invalid grid range")
	ErrInvalidInvestment  = errors.New("config: invalid amount per grid")
	ErrMissingCredentials = errors.New("config: missing credentials")
	ErrInvalidSymbol      = errors.New("config: invalid symbol")
)

// Config es la configuración completa del bot.
type Config struct {
	Grid       GridConfig       `yaml:"grid"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// GridConfig controla la geometría y el ritmo del grid.
type GridConfig struct {
	Symbol              string  `yaml:"symbol"` // BASE/QUOTE
	LowerPrice          float64 `yaml:"lower_price"`
	UpperPrice          float64 `yaml:"upper_price"`
	Levels              int     `yaml:"levels"`
	AmountPerGrid       float64 `yaml:"amount_per_grid"` // quote por nivel
	StaleOrderHours     float64 `yaml:"stale_order_hours"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	ErrorBackoffSeconds int     `yaml:"error_backoff_seconds"`
	ExpiryCheckMinutes  int     `yaml:"expiry_check_minutes"`
	StopFile            string  `yaml:"stop_file"`
}

// ExchangeConfig contiene credenciales y endpoint de Binance.
type ExchangeConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"` // vacío = producción
}

// SimulationConfig controla el modo dry-run.
type SimulationConfig struct {
	Enabled  *bool              `yaml:"enabled"`  // default: true
	Balances map[string]float64 `yaml:"balances"` // saldos virtuales opcionales por activo
}

// TelegramConfig habilita las notificaciones por Telegram.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig expone /metrics si Addr no está vacío.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato, nivel y archivo rotado del log.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML. Un YAML
// inexistente no es error: el bot puede configurarse solo con el entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// Simulated indica si el bot corre en modo simulación (default).
func (c *Config) Simulated() bool {
	return c.Simulation.Enabled == nil || *c.Simulation.Enabled
}

// PollInterval devuelve el intervalo entre iteraciones.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Grid.PollIntervalSeconds) * time.Second
}

// ErrorBackoff devuelve la espera tras una iteración fallida.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Grid.ErrorBackoffSeconds) * time.Second
}

// ExpiryEvery devuelve cada cuánto se revisan órdenes viejas.
func (c *Config) ExpiryEvery() time.Duration {
	return time.Duration(c.Grid.ExpiryCheckMinutes) * time.Minute
}

// StaleAfter devuelve la edad a partir de la cual una orden OPEN expira.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Grid.StaleOrderHours * float64(time.Hour))
}

// Validate comprueba rango, símbolo, inversión y credenciales.
func (c *Config) Validate() error {
	if _, _, err := domain.SplitSymbol(c.Grid.Symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}
	g := c.Grid
	if g.LowerPrice <= 0 || g.UpperPrice <= g.LowerPrice {
		return fmt.Errorf("%w: lower=%.8f upper=%.8f", ErrInvalidRange, g.LowerPrice, g.UpperPrice)
	}
	if g.Levels < 1 {
		return fmt.Errorf("%w: levels=%d", ErrInvalidRange, g.Levels)
	}
	if g.AmountPerGrid <= 0 {
		return fmt.Errorf("%w: %.8f", ErrInvalidInvestment, g.AmountPerGrid)
	}
	if !c.Simulated() && (c.Exchange.APIKey == "" || c.Exchange.SecretKey == "") {
		return fmt.Errorf("%w: BINANCE_API_KEY and BINANCE_SECRET_KEY are required in live mode", ErrMissingCredentials)
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("%w: TELEGRAM_CHAT_ID is required with TELEGRAM_TOKEN", ErrMissingCredentials)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"SYMBOL":             &cfg.Grid.Symbol,
		"BINANCE_API_KEY":    &cfg.Exchange.APIKey,
		"BINANCE_SECRET_KEY": &cfg.Exchange.SecretKey,
		"BINANCE_BASE_URL":   &cfg.Exchange.BaseURL,
		"TELEGRAM_TOKEN":     &cfg.Telegram.Token,
		"GRID_DB":            &cfg.Storage.DSN,
		"METRICS_ADDR":       &cfg.Metrics.Addr,
		"LOG_LEVEL":          &cfg.Log.Level,
		"LOG_FORMAT":         &cfg.Log.Format,
		"LOG_FILE":           &cfg.Log.File,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"GRID_LOWER_PRICE":     &cfg.Grid.LowerPrice,
		"GRID_UPPER_PRICE":     &cfg.Grid.UpperPrice,
		"AMOUNT_PER_GRID_USDT": &cfg.Grid.AmountPerGrid,
		"STALE_ORDER_HOURS":    &cfg.Grid.StaleOrderHours,
	}
	for key, dst := range floats {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("env %s=%q: %w", key, v, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"GRID_LEVELS":           &cfg.Grid.Levels,
		"POLL_INTERVAL_SECONDS": &cfg.Grid.PollIntervalSeconds,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s=%q: %w", key, v, err)
		}
		*dst = n
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("env TELEGRAM_CHAT_ID=%q: %w", v, err)
		}
		cfg.Telegram.ChatID = id
	}

	// MODO_SIMULACAO: cualquier valor distinto de "true" activa el modo real.
	if v := os.Getenv("MODO_SIMULACAO"); v != "" {
		enabled := strings.EqualFold(strings.TrimSpace(v), "true")
		cfg.Simulation.Enabled = &enabled
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Grid.Symbol == "" {
		cfg.Grid.Symbol = "BTC/USDT"
	}
	if cfg.Grid.LowerPrice == 0 {
		cfg.Grid.LowerPrice = 50000
	}
	if cfg.Grid.UpperPrice == 0 {
		cfg.Grid.UpperPrice = 70000
	}
	if cfg.Grid.Levels == 0 {
		cfg.Grid.Levels = 10
	}
	if cfg.Grid.AmountPerGrid == 0 {
		cfg.Grid.AmountPerGrid = 15
	}
	if cfg.Grid.StaleOrderHours <= 0 {
		cfg.Grid.StaleOrderHours = 24
	}
	if cfg.Grid.PollIntervalSeconds <= 0 {
		cfg.Grid.PollIntervalSeconds = 10
	}
	if cfg.Grid.ErrorBackoffSeconds <= 0 {
		cfg.Grid.ErrorBackoffSeconds = 5
	}
	if cfg.Grid.ExpiryCheckMinutes <= 0 {
		cfg.Grid.ExpiryCheckMinutes = 10
	}
	if cfg.Grid.StopFile == "" {
		cfg.Grid.StopFile = "STOP_GRID"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "grid_data.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "grid_bot.log"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 30
	}
}
