package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/fixture"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/envutil"
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: duration must be a string like \"5s\" or an int nanoseconds: %w", value.Line, err)
		}
		d.Duration = time.Duration(n)
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultItems is the catalog the requests workflow seeds when none is configured.
func DefaultItems() []domain.Item {
	return []domain.Item{
		{Name: "水 (2L)", Unit: "本", Category: "食料・飲料", Description: "飲料水、大人1日3L目安"},
		{Name: "毛布", Unit: "枚", Category: "生活必需品", Description: "防寒用"},
		{Name: "簡易トイレ", Unit: "個", Category: "衛生用品", Description: "5回分セットなど"},
		{Name: "粉ミルク", Unit: "缶", Category: "要配慮者向け", Description: "乳幼児向け"},
		{Name: "衛生マスク", Unit: "箱", Category: "衛生用品", Description: "50枚入り"},
	}
}

// DefaultNotes are the special-note texts the notes workflow draws from.
func DefaultNotes() []string {
	return []string{
		"ペット（猫）の餌が必要です。",
		"インスリンが必要です。",
		"アレルギー対応食（卵・乳製品除去）を希望します。",
		"高齢者がいるため、柔らかい食事が必要です。",
		"粉ミルクとおむつ（Mサイズ）が不足しています。",
		"透析患者が1名います。",
		"生理用品が不足しています。",
		"常備薬（降圧剤）が必要です。",
	}
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		API: APIConfig{
			BaseURL:     "http://127.0.0.1:8000",
			Prefix:      "/api/v1",
			Timeout:     Duration{Duration: 30 * time.Second},
			MaxRetries:  0,
			Concurrency: 16,
		},
		Fixtures: FixturesConfig{
			Center:               domain.Point{Latitude: 35.1814, Longitude: 136.9063},
			CoordRange:           0.1,
			OffsetMode:           string(fixture.OffsetHalfRange),
			Precision:            5,
			NamePrefix:           "名古屋テストコミュニティ",
			Count:                50,
			Communities:          10,
			RequestsPerCommunity: 3,
			Shelters:             0,
			MemberCountMin:       5,
			MemberCountMax:       500,
			QuantityMin:          5,
			QuantityMax:          100,
			PasswordLength:       8,
			NoteProbability:      0.7,
			Items:                DefaultItems(),
			Notes:                DefaultNotes(),
		},
		CredStore: CredStoreConfig{Key: "cocoiru:seed:credential"},
		FakeAPI: FakeAPIConfig{
			Addr:      ":8000",
			JWTSecret: "cocoiru-dev-secret",
			TokenTTL:  Duration{Duration: 3 * time.Hour},
			AllowOrigins: []string{
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
		},
	}
}

// Default returns the built-in configuration without consulting the file
// system or the environment.
func Default() *Config {
	cfg := defaultConfig()
	_ = cfg.normalize()
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order, then validates it.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("SEED_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "seed.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)

	cfg.API.BaseURL = envutil.String("API_BASE", cfg.API.BaseURL)
	if v, ok := os.LookupEnv("SEED_API_PREFIX"); ok {
		cfg.API.Prefix = strings.TrimSpace(v)
	}
	cfg.API.Timeout.Duration = envutil.Duration("SEED_TIMEOUT", cfg.API.Timeout.Duration)
	cfg.API.MaxRetries = envutil.Int("SEED_MAX_RETRIES", cfg.API.MaxRetries)
	cfg.API.Concurrency = envutil.Int("SEED_CONCURRENCY", cfg.API.Concurrency)

	cfg.Auth.Disabled = envutil.Bool("SEED_AUTH_DISABLED", cfg.Auth.Disabled)
	cfg.Auth.Communities = envutil.Bool("SEED_AUTH_COMMUNITIES", cfg.Auth.Communities)
	cfg.Auth.CommunityID = envutil.String("SEED_COMMUNITY_ID", cfg.Auth.CommunityID)
	cfg.Auth.CommunityPassword = envutil.String("SEED_COMMUNITY_PASSWORD", cfg.Auth.CommunityPassword)
	cfg.Auth.GovUsername = envutil.String("SEED_GOV_USERNAME", cfg.Auth.GovUsername)
	cfg.Auth.GovPassword = envutil.String("SEED_GOV_PASSWORD", cfg.Auth.GovPassword)
	cfg.Auth.BootstrapPassword = envutil.String("SEED_BOOTSTRAP_PASSWORD", cfg.Auth.BootstrapPassword)

	f := &cfg.Fixtures
	f.Count = envutil.Int("NUM_TO_CREATE", f.Count)
	f.Communities = envutil.Int("SEED_COMMUNITIES", f.Communities)
	f.RequestsPerCommunity = envutil.Int("SEED_REQUESTS_PER_COMMUNITY", f.RequestsPerCommunity)
	f.Shelters = envutil.Int("SEED_SHELTERS", f.Shelters)
	f.OffsetMode = envutil.String("SEED_OFFSET_MODE", f.OffsetMode)
	f.CoordRange = envutil.Float("SEED_COORD_RANGE", f.CoordRange)
	f.Precision = envutil.Int("SEED_COORD_PRECISION", f.Precision)
	f.NoteProbability = envutil.Float("SEED_NOTE_PROBABILITY", f.NoteProbability)
	f.Seed = envutil.Uint64("SEED_RANDOM_SEED", f.Seed)

	cfg.Ledger.DSN = envutil.String("SEED_LEDGER_DSN", cfg.Ledger.DSN)
	cfg.CredStore.RedisURL = envutil.String("SEED_REDIS_URL", cfg.CredStore.RedisURL)
	cfg.Metrics.Textfile = envutil.String("SEED_METRICS_TEXTFILE", cfg.Metrics.Textfile)

	cfg.FakeAPI.Addr = envutil.String("FAKEAPI_ADDR", cfg.FakeAPI.Addr)
	cfg.FakeAPI.JWTSecret = envutil.String("FAKEAPI_JWT_SECRET", cfg.FakeAPI.JWTSecret)
}

func (cfg *Config) normalize() error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}

	a := &cfg.API
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute http(s) URL", a.BaseURL)
	}
	a.Prefix = strings.Trim(strings.TrimSpace(a.Prefix), "/")
	if a.Prefix != "" {
		a.Prefix = "/" + a.Prefix
	}
	if a.Timeout.Duration <= 0 {
		a.Timeout = Duration{Duration: 30 * time.Second}
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("invalid api.max_retries=%d", a.MaxRetries)
	}
	if a.Concurrency < 0 {
		return fmt.Errorf("invalid api.concurrency=%d", a.Concurrency)
	}

	au := &cfg.Auth
	au.CommunityID = strings.TrimSpace(au.CommunityID)
	au.GovUsername = strings.TrimSpace(au.GovUsername)
	if au.CommunityID != "" && au.CommunityPassword == "" {
		return errors.New("auth.community_password is required when auth.community_id is set")
	}
	if au.GovUsername != "" && au.GovPassword == "" {
		return errors.New("auth.gov_password is required when auth.gov_username is set")
	}

	f := &cfg.Fixtures
	mode, err := fixture.ParseOffsetMode(f.OffsetMode)
	if err != nil {
		return fmt.Errorf("fixtures.offset_mode: %w", err)
	}
	f.OffsetMode = string(mode)
	if f.CoordRange < 0 {
		return fmt.Errorf("invalid fixtures.coord_range=%v", f.CoordRange)
	}
	if f.Count < 1 || f.Communities < 1 || f.RequestsPerCommunity < 1 {
		return errors.New("fixtures.count, fixtures.communities and fixtures.requests_per_community must be >= 1")
	}
	if f.Shelters < 0 {
		return fmt.Errorf("invalid fixtures.shelters=%d", f.Shelters)
	}
	if f.MemberCountMin < 0 || f.MemberCountMax < f.MemberCountMin {
		return fmt.Errorf("invalid fixtures.member_count range [%d, %d]", f.MemberCountMin, f.MemberCountMax)
	}
	if f.QuantityMin < 1 || f.QuantityMax < f.QuantityMin {
		return fmt.Errorf("invalid fixtures.quantity range [%d, %d]", f.QuantityMin, f.QuantityMax)
	}
	if f.PasswordLength < 1 {
		return fmt.Errorf("invalid fixtures.password_length=%d", f.PasswordLength)
	}
	if f.NoteProbability < 0 || f.NoteProbability > 1 {
		return fmt.Errorf("fixtures.note_probability must be within [0, 1], got %v", f.NoteProbability)
	}
	if strings.TrimSpace(f.NamePrefix) == "" {
		f.NamePrefix = "名古屋テストコミュニティ"
	}
	if len(f.Items) == 0 {
		return errors.New("fixtures.items must list at least one item")
	}
	for i, it := range f.Items {
		if err := domain.Validate(it); err != nil {
			return fmt.Errorf("fixtures.items[%d]: %w", i, err)
		}
	}
	if len(f.Notes) == 0 {
		f.Notes = DefaultNotes()
	}

	if strings.TrimSpace(cfg.CredStore.Key) == "" {
		cfg.CredStore.Key = "cocoiru:seed:credential"
	}
	if strings.TrimSpace(cfg.FakeAPI.Addr) == "" {
		cfg.FakeAPI.Addr = ":8000"
	}
	if cfg.FakeAPI.TokenTTL.Duration <= 0 {
		cfg.FakeAPI.TokenTTL = Duration{Duration: 3 * time.Hour}
	}
	return nil
}

// Mode returns the parsed fixtures.offset_mode.
func (f FixturesConfig) Mode() fixture.OffsetMode {
	return fixture.OffsetMode(f.OffsetMode)
}
