package infra

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xela07ax/higher-guardian/internal/audit"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/ethics"
	"github.com/xela07ax/higher-guardian/internal/guardian"
	"github.com/xela07ax/higher-guardian/internal/monitoring"
	"github.com/xela07ax/higher-guardian/internal/network"
	"github.com/xela07ax/higher-guardian/internal/risk"
	"github.com/xela07ax/higher-guardian/internal/transaction"
)

// Config корневая структура конфигурации Guardian.
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Console     ConsoleConfig      `mapstructure:"console"`
	GRPC        GRPCConfig         `mapstructure:"grpc"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
	Database    DatabaseConfig     `mapstructure:"database"`
	Redis       RedisConfig        `mapstructure:"redis"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Engine      EngineConfig       `mapstructure:"engine"`
	Logger      LoggerConfig       `mapstructure:"logger"`
	Guardian    GuardianConfig     `mapstructure:"guardian"`
	Ethics      ethics.Config      `mapstructure:"ethics"`
	Transaction transaction.Config `mapstructure:"transaction"`
	Monitoring  monitoring.Config  `mapstructure:"monitoring"`
	Network     NetworkConfig      `mapstructure:"network"`
	Operators   []domain.Operator  `mapstructure:"operators"`
}

// ServerConfig описывает HTTP data plane.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Токены агентов для X-Guardian-Token (HTTP) и x-guardian-token (gRPC). Пусто — проверка выключена.
	Tokens []string `mapstructure:"tokens"`
}

type ConsoleConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig описывает подключение к PostgreSQL для аудита. Пустой URL — аудит в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub блок-листа). Пустой Addr — без Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT консоли.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
	PublicKey      []byte
	PrivateKey     []byte
}

// EngineConfig буфер аудита и защита хранилища аудита.
type EngineConfig struct {
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditBatchSize     int           `mapstructure:"audit_batch_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`

	// Circuit Breaker и лимитер перед хранилищем аудита
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
	SinkRateLimit float64       `mapstructure:"sink_rate_limit"`
	SinkRateBurst int           `mapstructure:"sink_rate_burst"`
	SinkAttempts  uint          `mapstructure:"sink_attempts"`
	SinkTimeout   time.Duration `mapstructure:"sink_timeout"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type GuardianConfig struct {
	HistoryCapacity int                      `mapstructure:"history_capacity"`
	HistoryTrim     int                      `mapstructure:"history_trim"`
	Boundaries      []domain.EthicalBoundary `mapstructure:"boundaries"`
	Risk            risk.Config              `mapstructure:"risk"`
}

// FirewallRuleConfig правило в конфиге. RemoteIP строкой, пусто — любой.
type FirewallRuleConfig struct {
	Name       string `mapstructure:"name"`
	Action     string `mapstructure:"action"`
	Direction  string `mapstructure:"direction"`
	Protocol   string `mapstructure:"protocol"`
	LocalPort  uint16 `mapstructure:"local_port"`
	RemotePort uint16 `mapstructure:"remote_port"`
	RemoteIP   string `mapstructure:"remote_ip"`
}

type NetworkConfig struct {
	network.Config `mapstructure:",squash"`
	FirewallRules  []FirewallRuleConfig `mapstructure:"firewall_rules"`
	// Начальный блок-лист. Заливается в Redis при прогреве.
	BlockedIPs []string `mapstructure:"blocked_ips"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if len(cfg.Guardian.Boundaries) == 0 {
		cfg.Guardian.Boundaries = domain.DefaultEthicalBoundaries()
	}

	rules, err := cfg.Network.Rules()
	if err != nil {
		return nil, err
	}
	cfg.Network.Config.Rules = rules

	// Сначала PEM из ENV (Docker/K8s), иначе файл по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("console.port", 8000)
	v.SetDefault("console.read_timeout", 5*time.Second)
	v.SetDefault("console.write_timeout", 10*time.Second)
	v.SetDefault("grpc.port", 50052)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.issuer", "higher-guardian-console")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	ad := audit.DefaultConfig()
	v.SetDefault("engine.audit_buffer_size", ad.BufferSize)
	v.SetDefault("engine.audit_batch_size", ad.BatchSize)
	v.SetDefault("engine.audit_flush_interval", ad.FlushInterval)
	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.cb_failures", 5)
	v.SetDefault("engine.sink_rate_limit", 50)
	v.SetDefault("engine.sink_rate_burst", 10)
	v.SetDefault("engine.sink_attempts", 3)
	v.SetDefault("engine.sink_timeout", 10*time.Second)

	gd := guardian.DefaultConfig()
	v.SetDefault("guardian.history_capacity", gd.HistoryCapacity)
	v.SetDefault("guardian.history_trim", gd.HistoryTrim)
	rd := risk.DefaultConfig()
	v.SetDefault("guardian.risk.autonomy_keywords", rd.AutonomyKeywords)
	v.SetDefault("guardian.risk.harm_keywords", rd.HarmKeywords)
	v.SetDefault("guardian.risk.capability_keywords", rd.CapabilityKeywords)
	v.SetDefault("guardian.risk.confidence", rd.Confidence)
	v.SetDefault("guardian.risk.weights.boundary", rd.Weights.Boundary)
	v.SetDefault("guardian.risk.weights.capability", rd.Weights.Capability)
	v.SetDefault("guardian.risk.weights.transaction", rd.Weights.Transaction)

	ed := ethics.DefaultConfig()
	v.SetDefault("ethics.manipulation_keywords", ed.ManipulationKeywords)
	v.SetDefault("ethics.harmful_keywords", ed.HarmfulKeywords)
	v.SetDefault("ethics.beneficial_keywords", ed.BeneficialKeywords)
	v.SetDefault("ethics.destructive_keywords", ed.DestructiveKeywords)
	v.SetDefault("ethics.weights.autonomy", ed.Weights.Autonomy)
	v.SetDefault("ethics.weights.transparency", ed.Weights.Transparency)
	v.SetDefault("ethics.weights.beneficence", ed.Weights.Beneficence)
	v.SetDefault("ethics.weights.non_maleficence", ed.Weights.NonMaleficence)

	td := transaction.DefaultConfig()
	v.SetDefault("transaction.round_amount_threshold", td.RoundAmountThreshold)
	v.SetDefault("transaction.min_recipient_length", td.MinRecipientLength)
	v.SetDefault("transaction.unknown_marker", td.UnknownMarker)

	md := monitoring.DefaultConfig()
	v.SetDefault("monitoring.activity_capacity", md.ActivityCapacity)
	v.SetDefault("monitoring.high_risk_per_hour", md.HighRiskPerHour)
	v.SetDefault("monitoring.report_window", md.ReportWindow)
	v.SetDefault("monitoring.top_agents", md.TopAgents)

	nd := network.DefaultConfig()
	v.SetDefault("network.risky_ports", nd.RiskyPorts)
	v.SetDefault("network.suspicious_window", nd.SuspiciousWindow)
	v.SetDefault("network.suspicious_limit", nd.SuspiciousLimit)
	v.SetDefault("network.retention", nd.Retention)
	v.SetDefault("network.exfil_ratio", nd.ExfilRatio)
	v.SetDefault("network.exfil_min_bytes", nd.ExfilMinBytes)
	v.SetDefault("network.exfil_outbound_bytes", nd.ExfilOutboundBytes)
	v.SetDefault("network.traffic_cap_mb", nd.TrafficCapMegabytes)
	v.SetDefault("network.policy.max_connections", nd.Policy.MaxConnections)
	v.SetDefault("network.policy.require_encryption", nd.Policy.RequireEncryption)
}

// Rules переводит правила из конфига в доменные. Пустой список — правила по умолчанию.
func (n NetworkConfig) Rules() ([]domain.FirewallRule, error) {
	if len(n.FirewallRules) == 0 {
		return network.DefaultRules(), nil
	}
	rules := make([]domain.FirewallRule, 0, len(n.FirewallRules))
	for _, rc := range n.FirewallRules {
		rule, err := rc.ToDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (rc FirewallRuleConfig) ToDomain() (domain.FirewallRule, error) {
	proto, ok := domain.ParseProtocol(rc.Protocol)
	if !ok {
		return domain.FirewallRule{}, fmt.Errorf("firewall rule %q: unknown protocol %q", rc.Name, rc.Protocol)
	}
	action := domain.FirewallAction(strings.ToUpper(rc.Action))
	switch action {
	case domain.FirewallAllow, domain.FirewallBlock, domain.FirewallMonitor:
	default:
		return domain.FirewallRule{}, fmt.Errorf("firewall rule %q: unknown action %q", rc.Name, rc.Action)
	}
	direction := domain.TrafficDirection(strings.ToUpper(rc.Direction))
	if direction == "" {
		direction = domain.DirectionBoth
	}

	rule := domain.FirewallRule{
		Name:       rc.Name,
		Action:     action,
		Direction:  direction,
		Protocol:   proto,
		LocalPort:  rc.LocalPort,
		RemotePort: rc.RemotePort,
	}
	if rc.RemoteIP != "" {
		ip, err := netip.ParseAddr(rc.RemoteIP)
		if err != nil {
			return domain.FirewallRule{}, fmt.Errorf("firewall rule %q: %w", rc.Name, err)
		}
		rule.RemoteIP = ip
	}
	return rule, nil
}

// loadKeyResource PEM из ENV или из файла.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
