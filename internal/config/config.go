package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultCooldown is the minimum time between two campaign emails to the same target
const DefaultCooldown = 14 * 24 * time.Hour

// Storage backends
const (
	BackendBolt  = "bolt"
	BackendMongo = "mongo"
)

// Transport types
const (
	TransportSendGrid = "sendgrid"
	TransportSES      = "ses"
	TransportSMTP     = "smtp"
	TransportSandbox  = "sandbox"
)

// Customer exclusion variants applied while qualifying candidates
const (
	ExclusionEmailOrDomain = "email_or_domain"
	ExclusionDomainOnly    = "domain_only"
)

// Dispatch policies
const (
	PolicyExcludeCustomers  = "exclude_customers"
	PolicyKnownBusinessOnly = "known_business_only"
)

// Cooldown scopes
const (
	ScopeContact = "contact"
	ScopeDomain  = "domain"
)

// Config is the main configuration structure
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Transport     TransportConfig     `yaml:"transport"`
	Message       MessageConfig       `yaml:"message"`
	Qualification QualificationConfig `yaml:"qualification"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Suppression   SuppressionConfig   `yaml:"suppression"`
	Intake        IntakeConfig        `yaml:"intake"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	API           APIConfig           `yaml:"api"`
}

// StorageConfig selects and configures the document store
type StorageConfig struct {
	Backend string      `yaml:"backend"` // bolt, mongo
	Path    string      `yaml:"path"`    // bolt file
	Mongo   MongoConfig `yaml:"mongo"`
}

// MongoConfig contains MongoDB connection settings
type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TransportConfig selects the outbound email provider
type TransportConfig struct {
	Type     string         `yaml:"type"` // sendgrid, ses, smtp, sandbox
	SendGrid SendGridConfig `yaml:"sendgrid"`
	SES      SESConfig      `yaml:"ses"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
}

// SendGridConfig contains SendGrid v3 API settings
type SendGridConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SESConfig contains Amazon SES settings; empty keys use the default credential chain
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// SMTPConfig contains relay settings for the SMTP transport
type SMTPConfig struct {
	Addr     string        `yaml:"addr"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Helo     string        `yaml:"helo"`
	Timeout  time.Duration `yaml:"timeout"`
	DKIM     DKIMConfig    `yaml:"dkim"`
}

// DKIMConfig contains DKIM signing settings
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
	Domain   string `yaml:"domain"`
}

// SandboxConfig contains settings for the capturing transport
type SandboxConfig struct {
	Path string `yaml:"path"`
	// ErrorRate answers this share of sends with a simulated 500
	ErrorRate float64 `yaml:"error_rate"`
}

// MessageConfig describes the campaign email
type MessageConfig struct {
	From     string            `yaml:"from"`
	FromName string            `yaml:"from_name"`
	Subject  string            `yaml:"subject"`
	HTML     string            `yaml:"html"`
	Text     string            `yaml:"text"`
	Vars     map[string]string `yaml:"vars"`
}

// QualificationConfig tunes candidate qualification
type QualificationConfig struct {
	CustomerExclusion       string         `yaml:"customer_exclusion"` // email_or_domain, domain_only
	RegisterBusinessDomains bool           `yaml:"register_business_domains"`
	Cooldown                *time.Duration `yaml:"cooldown"` // 0 disables
}

// DispatchConfig tunes campaign sending
type DispatchConfig struct {
	Policy        string         `yaml:"policy"` // exclude_customers, known_business_only
	Cooldown      *time.Duration `yaml:"cooldown"`
	CooldownScope string         `yaml:"cooldown_scope"`  // contact, domain
	RatePerSecond float64        `yaml:"rate_per_second"` // 0 = unpaced
}

// SuppressionConfig selects the authoritative opt-out source
type SuppressionConfig struct {
	Source string `yaml:"source"` // sendgrid, ses; defaults to transport type
}

// IntakeConfig contains default input files
type IntakeConfig struct {
	DefaultFile  string `yaml:"default_file"`
	ContactsFile string `yaml:"contacts_file"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level            string `yaml:"level"`  // debug, info, warn, error
	Format           string `yaml:"format"` // json, text
	RedactRecipients *bool  `yaml:"redact_recipients"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ListenAddr     string `yaml:"listen_addr"`     // Default: :9090
	Path           string `yaml:"path"`            // Default: /metrics
	PushgatewayURL string `yaml:"pushgateway_url"` // batch commands push here when set
	Job            string `yaml:"job"`
}

// APIConfig contains read-only HTTP API settings
type APIConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	APIKey       string        `yaml:"api_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Load loads configuration from a YAML file, then a .env file and the environment
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Missing .env is normal
	_ = godotenv.Load()
	cfg.applyEnv()

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv lets deployment secrets override the file
func (c *Config) applyEnv() {
	if v := os.Getenv("MONGODB_URI"); v != "" {
		c.Storage.Mongo.URI = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Transport.SendGrid.APIKey = v
	}
	if v := os.Getenv("DEFAULT_FROM_EMAIL"); v != "" {
		c.Message.From = v
	}
	if v := os.Getenv("PARTNER_WEBSITE_URL"); v != "" {
		if c.Message.Vars == nil {
			c.Message.Vars = make(map[string]string)
		}
		c.Message.Vars["partner_website_url"] = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Transport.SES.Region = v
	}
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Storage.Backend == "" {
		if c.Storage.Mongo.URI != "" {
			c.Storage.Backend = BackendMongo
		} else {
			c.Storage.Backend = BackendBolt
		}
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/campaigner/campaigner.db"
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "email_campaigns"
	}
	if c.Storage.Mongo.Timeout == 0 {
		c.Storage.Mongo.Timeout = 10 * time.Second
	}

	if c.Transport.Type == "" {
		c.Transport.Type = TransportSendGrid
	}
	if c.Transport.SendGrid.BaseURL == "" {
		c.Transport.SendGrid.BaseURL = "https://api.sendgrid.com"
	}
	if c.Transport.SendGrid.Timeout == 0 {
		c.Transport.SendGrid.Timeout = 30 * time.Second
	}
	if c.Transport.SMTP.Timeout == 0 {
		c.Transport.SMTP.Timeout = 60 * time.Second
	}
	if c.Transport.SMTP.Helo == "" {
		hostname, _ := os.Hostname()
		c.Transport.SMTP.Helo = hostname
	}
	if c.Transport.Sandbox.Path == "" {
		c.Transport.Sandbox.Path = "/var/lib/campaigner/sandbox.db"
	}

	if c.Message.Subject == "" {
		c.Message.Subject = "A note from {{.From}}"
	}
	if c.Message.HTML == "" && c.Message.Text == "" {
		c.Message.HTML = `<p>Hello {{if .Contact.FirstName}}{{.Contact.FirstName}}{{else}}there{{end}},</p>
<p>Check out our partner website: <a href="{{.Vars.partner_website_url}}">{{.Vars.partner_website_url}}</a></p>`
		c.Message.Text = `Hello {{if .Contact.FirstName}}{{.Contact.FirstName}}{{else}}there{{end}},

Check out our partner website: {{.Vars.partner_website_url}}`
	}

	if c.Qualification.CustomerExclusion == "" {
		c.Qualification.CustomerExclusion = ExclusionEmailOrDomain
	}
	if c.Qualification.Cooldown == nil {
		d := DefaultCooldown
		c.Qualification.Cooldown = &d
	}

	if c.Dispatch.Policy == "" {
		c.Dispatch.Policy = PolicyExcludeCustomers
	}
	if c.Dispatch.Cooldown == nil {
		d := DefaultCooldown
		c.Dispatch.Cooldown = &d
	}
	if c.Dispatch.CooldownScope == "" {
		c.Dispatch.CooldownScope = ScopeContact
	}

	if c.Suppression.Source == "" {
		switch c.Transport.Type {
		case TransportSES:
			c.Suppression.Source = TransportSES
		default:
			c.Suppression.Source = TransportSendGrid
		}
	}

	if c.Intake.DefaultFile == "" {
		c.Intake.DefaultFile = "campaign_contacts.json"
	}
	if c.Intake.ContactsFile == "" {
		c.Intake.ContactsFile = "contacts.json"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.RedactRecipients == nil {
		redact := true
		c.Logging.RedactRecipients = &redact
	}

	// Metrics defaults
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "campaigner"
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 30 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the bolt backend")
		}
	case BackendMongo:
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri (or MONGODB_URI) is required for the mongo backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend: %s (must be bolt or mongo)", c.Storage.Backend)
	}

	if c.Message.From == "" {
		return fmt.Errorf("message.from (or DEFAULT_FROM_EMAIL) is required")
	}

	if err := c.validateTransport(); err != nil {
		return err
	}

	validExclusions := map[string]bool{ExclusionEmailOrDomain: true, ExclusionDomainOnly: true}
	if !validExclusions[c.Qualification.CustomerExclusion] {
		return fmt.Errorf("invalid qualification.customer_exclusion: %s (must be email_or_domain or domain_only)", c.Qualification.CustomerExclusion)
	}
	if *c.Qualification.Cooldown < 0 {
		return fmt.Errorf("qualification.cooldown must not be negative")
	}

	validPolicies := map[string]bool{PolicyExcludeCustomers: true, PolicyKnownBusinessOnly: true}
	if !validPolicies[c.Dispatch.Policy] {
		return fmt.Errorf("invalid dispatch.policy: %s (must be exclude_customers or known_business_only)", c.Dispatch.Policy)
	}
	// Registered domains would be excluded from the very campaign that registered them
	if c.Qualification.RegisterBusinessDomains && c.Dispatch.Policy == PolicyExcludeCustomers {
		return fmt.Errorf("qualification.register_business_domains requires dispatch.policy known_business_only")
	}
	validScopes := map[string]bool{ScopeContact: true, ScopeDomain: true}
	if !validScopes[c.Dispatch.CooldownScope] {
		return fmt.Errorf("invalid dispatch.cooldown_scope: %s (must be contact or domain)", c.Dispatch.CooldownScope)
	}
	if *c.Dispatch.Cooldown < 0 {
		return fmt.Errorf("dispatch.cooldown must not be negative")
	}
	if c.Dispatch.RatePerSecond < 0 {
		return fmt.Errorf("dispatch.rate_per_second must not be negative")
	}

	validSources := map[string]bool{TransportSendGrid: true, TransportSES: true}
	if !validSources[c.Suppression.Source] {
		return fmt.Errorf("invalid suppression.source: %s (must be sendgrid or ses)", c.Suppression.Source)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// validateTransport validates the selected transport section
func (c *Config) validateTransport() error {
	switch c.Transport.Type {
	case TransportSendGrid:
		if c.Transport.SendGrid.APIKey == "" {
			return fmt.Errorf("transport.sendgrid.api_key (or SENDGRID_API_KEY) is required")
		}
	case TransportSES:
		if c.Transport.SES.Region == "" {
			return fmt.Errorf("transport.ses.region (or AWS_REGION) is required")
		}
	case TransportSMTP:
		if c.Transport.SMTP.Addr == "" {
			return fmt.Errorf("transport.smtp.addr is required")
		}
		if err := c.validateDKIM(); err != nil {
			return err
		}
	case TransportSandbox:
		if c.Transport.Sandbox.Path == "" {
			return fmt.Errorf("transport.sandbox.path is required")
		}
		if c.Transport.Sandbox.ErrorRate < 0 || c.Transport.Sandbox.ErrorRate > 1 {
			return fmt.Errorf("transport.sandbox.error_rate must be between 0 and 1")
		}
	default:
		return fmt.Errorf("invalid transport.type: %s (must be sendgrid, ses, smtp, or sandbox)", c.Transport.Type)
	}
	return nil
}

func (c *Config) validateDKIM() error {
	dkim := c.Transport.SMTP.DKIM
	if !dkim.Enabled {
		return nil
	}

	if dkim.Selector == "" {
		return fmt.Errorf("transport.smtp.dkim.selector is required when DKIM is enabled")
	}
	if dkim.KeyFile == "" {
		return fmt.Errorf("transport.smtp.dkim.key_file is required when DKIM is enabled")
	}
	if dkim.Domain == "" {
		return fmt.Errorf("transport.smtp.dkim.domain is required when DKIM is enabled")
	}

	return nil
}

// QualificationCooldown returns the effective qualification cooldown (0 = disabled)
func (c *Config) QualificationCooldown() time.Duration {
	if c.Qualification.Cooldown == nil {
		return DefaultCooldown
	}
	return *c.Qualification.Cooldown
}

// DispatchCooldown returns the effective dispatch cooldown (0 = disabled)
func (c *Config) DispatchCooldown() time.Duration {
	if c.Dispatch.Cooldown == nil {
		return DefaultCooldown
	}
	return *c.Dispatch.Cooldown
}

// RedactRecipients reports whether recipient addresses are masked in logs
func (c *Config) RedactRecipients() bool {
	return c.Logging.RedactRecipients == nil || *c.Logging.RedactRecipients
}
