package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	bybitKeyENV       = "BYBIT_API_KEY"
	bybitSecretENV    = "BYBIT_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token   string `yaml:"token"`
		OwnerID int64  `yaml:"owner_id"` // кому разрешены /balance и /order
	} `yaml:"telegram"`
	DB        string `yaml:"db_dsn"`     // пусто => файловый стор
	StorePath string `yaml:"store_path"` // путь к JSON-снапшоту
	Service   struct {
		Host      string `yaml:"host"`
		AdminAddr string `yaml:"admin_addr"` // health + metrics
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	Bybit struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
		Key     string `yaml:"api_key"`
		Secret  string `yaml:"api_secret"`
	} `yaml:"bybit"`

	// Вотчер целей
	WatchSymbols  []string      // какие споты доступны в меню уведомлений
	CheckInterval time.Duration // период опроса цены

	// Торговый цикл
	TradeSymbol     string        // деривативный символ сигнального цикла
	KlineInterval   string        // интервал свечей в нотации Bybit ("15")
	SignalInterval  time.Duration // период сигнального цикла
	SignalOffset    time.Duration // сдвиг от границы, чтобы свеча успела закрыться
	MonitorInterval time.Duration // период монитора лимитных ордеров
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		StorePath: getenvDefault("BOT_STORE_PATH", "data/state.json"),

		WatchSymbols:  []string{"BTCUSDT", "ETHUSDT"},
		CheckInterval: durationFromEnv("CHECK_INTERVAL", "60s"),

		TradeSymbol:     getenvDefault("TRADE_SYMBOL", "ETHUSDT"),
		KlineInterval:   getenvDefault("KLINE_INTERVAL", "15"),
		SignalInterval:  durationFromEnv("SIGNAL_INTERVAL", "15m"),
		SignalOffset:    durationFromEnv("SIGNAL_OFFSET", "1s"),
		MonitorInterval: durationFromEnv("MONITOR_INTERVAL", "60s"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if v := os.Getenv(bybitKeyENV); v != "" {
		config.Bybit.Key = v
	}
	if v := os.Getenv(bybitSecretENV); v != "" {
		config.Bybit.Secret = v
	}
	if config.Bybit.BaseURL == "" {
		config.Bybit.BaseURL = "https://api.bybit.com"
	}
	if config.Bybit.WSURL == "" {
		config.Bybit.WSURL = "wss://stream.bybit.com/v5/public/spot"
	}
	if config.Service.AdminAddr == "" {
		config.Service.AdminAddr = ":8080"
	}

	return &config, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
