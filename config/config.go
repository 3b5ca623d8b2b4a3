package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// GameConfig holds the economy tuning knobs. The values mirror the live
// bot's behavior; none of them are algorithmic contracts.
type GameConfig struct {
	RollLimit        int           `mapstructure:"roll_limit"`
	RollWindow       time.Duration `mapstructure:"roll_window"`
	ClaimLimit       int           `mapstructure:"claim_limit"`
	ClaimWindow      time.Duration `mapstructure:"claim_window"`
	SpawnTTL         time.Duration `mapstructure:"spawn_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	DailyReward      int64         `mapstructure:"daily_reward"`
	DailyWindow      time.Duration `mapstructure:"daily_window"`
	BonusClaimPrice  int64         `mapstructure:"bonus_claim_price"`
	BonusClaimAmount int           `mapstructure:"bonus_claim_amount"`
	BonusRollPrice   int64         `mapstructure:"bonus_roll_price"`
	BonusRollAmount  int           `mapstructure:"bonus_roll_amount"`
	UpgradeBaseCost  int64         `mapstructure:"upgrade_base_cost"`
	UpgradeValueRate float64       `mapstructure:"upgrade_value_rate"`
	AuctionMinPrice  int64         `mapstructure:"auction_min_price"`
	AuctionDuration  time.Duration `mapstructure:"auction_duration"`
	LeaderboardSize  int           `mapstructure:"leaderboard_size"`
	LeaderboardEvery time.Duration `mapstructure:"leaderboard_every"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	GatewayKeyHash string        `mapstructure:"gateway_key_hash"` // bcrypt hash of the gateway key
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedIPs restricts the gateway endpoints to these client IPs.
	// An empty slice allows all (useful for local development only).
	AllowedIPs []string `mapstructure:"allowed_ips"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/shorebot.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.roll_limit", 10)
	v.SetDefault("game.roll_window", "1h")
	v.SetDefault("game.claim_limit", 1)
	v.SetDefault("game.claim_window", "2h")
	v.SetDefault("game.spawn_ttl", "60s")
	v.SetDefault("game.sweep_interval", "60s")
	v.SetDefault("game.daily_reward", 100)
	v.SetDefault("game.daily_window", "24h")
	v.SetDefault("game.bonus_claim_price", 30000)
	v.SetDefault("game.bonus_claim_amount", 1)
	v.SetDefault("game.bonus_roll_price", 20000)
	v.SetDefault("game.bonus_roll_amount", 5)
	v.SetDefault("game.upgrade_base_cost", 50)
	v.SetDefault("game.upgrade_value_rate", 0.20)
	v.SetDefault("game.auction_min_price", 100)
	v.SetDefault("game.auction_duration", "30m")
	v.SetDefault("game.leaderboard_size", 100)
	v.SetDefault("game.leaderboard_every", "5m")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
