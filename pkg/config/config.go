package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Local   LocalConfig
	Persist PersistConfig
	Auth    AuthConfig
	Log     LogConfig
	Session SessionConfig
}

type ServerConfig struct {
	Address string
	GinMode string
}

// DBConfig 遠端文件庫設定，Driver 為 postgres 或 sqlite
type DBConfig struct {
	Driver   string
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	Path     string // sqlite 檔案路徑，空字串代表記憶體資料庫
}

// LocalConfig 本機備援儲存 (badger) 的設定
type LocalConfig struct {
	Dir string // 空字串代表記憶體模式
}

// PersistConfig 控制去抖動與定期備份的時間
type PersistConfig struct {
	LocalDebounce  time.Duration
	RemoteDebounce time.Duration
	Interval       time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionConfig 主席會議的政策設定
type SessionConfig struct {
	// AbstainPolicy: "reject-present-and-voting" 或 "allow-all"
	AbstainPolicy string
	// IdleTimeout 閒置超過此時間的會期會被寫入並關閉，0 表示不自動關閉
	IdleTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.ginmode", "release")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "mun_dashboard")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.path", "")
	v.SetDefault("local.dir", "")
	v.SetDefault("persist.localdebounce", time.Second)
	v.SetDefault("persist.remotedebounce", 3*time.Second)
	v.SetDefault("persist.interval", 5*time.Minute)
	v.SetDefault("auth.jwtsecret", "change-me")
	v.SetDefault("auth.tokenttl", 240*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("session.abstainpolicy", "reject-present-and-voting")
	v.SetDefault("session.idletimeout", 2*time.Hour)
}

// Load 讀取設定檔 (找不到時使用預設值)，並允許 MUN_ 前綴的環境變數覆寫
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./pkg/config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("MUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
