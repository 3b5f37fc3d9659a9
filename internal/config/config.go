package config

import (
	"time"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

type Duration struct {
	Duration time.Duration
}

type APIConfig struct {
	// BaseURL is the server origin, e.g. http://127.0.0.1:8000.
	BaseURL string `yaml:"base_url"`
	// Prefix is the router mount point appended to BaseURL.
	Prefix string `yaml:"prefix"`

	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`

	// Concurrency caps in-flight calls per phase; 0 means unlimited.
	Concurrency int `yaml:"concurrency"`
}

// Endpoint is the URL every collection path is resolved against.
func (a APIConfig) Endpoint() string {
	return a.BaseURL + a.Prefix
}

type AuthConfig struct {
	// Disabled skips the token phase entirely; calls go out without a bearer.
	Disabled bool `yaml:"disabled"`
	// Communities turns the token phase on for the communities workflow,
	// which the API accepts unauthenticated.
	Communities bool `yaml:"communities"`

	CommunityID       string `yaml:"community_id"`
	CommunityPassword string `yaml:"community_password"`

	GovUsername string `yaml:"gov_username"`
	GovPassword string `yaml:"gov_password"`

	// BootstrapPassword is used for the bootstrap community; empty generates one.
	BootstrapPassword string `yaml:"bootstrap_password"`
}

type FixturesConfig struct {
	Center     domain.Point `yaml:"center"`
	CoordRange float64      `yaml:"coord_range"`
	OffsetMode string       `yaml:"offset_mode"`
	// Precision rounds coordinates to this many decimals; negative disables rounding.
	Precision int `yaml:"precision"`

	NamePrefix string `yaml:"name_prefix"`

	// Count is how many communities the communities workflow creates.
	Count int `yaml:"count"`
	// Communities is how many communities the requests workflow creates.
	Communities          int `yaml:"communities"`
	RequestsPerCommunity int `yaml:"requests_per_community"`
	Shelters             int `yaml:"shelters"`

	MemberCountMin int `yaml:"member_count_min"`
	MemberCountMax int `yaml:"member_count_max"`
	QuantityMin    int `yaml:"quantity_min"`
	QuantityMax    int `yaml:"quantity_max"`

	PasswordLength  int     `yaml:"password_length"`
	NoteProbability float64 `yaml:"note_probability"`

	// Seed makes runs reproducible; 0 picks a random seed.
	Seed uint64 `yaml:"seed"`

	Items []domain.Item `yaml:"items"`
	Notes []string      `yaml:"notes"`
}

type LedgerConfig struct {
	// DSN is a postgres:// URL or a SQLite file path. Empty disables the ledger.
	DSN string `yaml:"dsn"`
}

type CredStoreConfig struct {
	RedisURL string `yaml:"redis_url"`
	Key      string `yaml:"key"`
}

type FakeAPIConfig struct {
	Addr      string   `yaml:"addr"`
	JWTSecret string   `yaml:"jwt_secret"`
	TokenTTL  Duration `yaml:"token_ttl"`
	// AllowOrigins feeds the CORS middleware.
	AllowOrigins []string `yaml:"allow_origins"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the seeder's metrics after every run.
	Textfile string `yaml:"textfile"`
}

type Config struct {
	Env       string          `yaml:"env"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Fixtures  FixturesConfig  `yaml:"fixtures"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	CredStore CredStoreConfig `yaml:"credstore"`
	FakeAPI   FakeAPIConfig   `yaml:"fakeapi"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}
