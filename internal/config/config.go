package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Addr                string
	JWTSecret           string
	PlanTimeout         time.Duration
	UpstreamTimeout     time.Duration
	TLSCertFile         string
	TLSKeyFile          string
	AmadeusURL          string
	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusTokenCache   bool
	OpenCageURL         string
	OpenCageKey         string
	DatabaseURL         string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found (using environment variables)")
	}

	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("plan_timeout", "20s")
	v.SetDefault("upstream_timeout", "8s")
	v.SetDefault("amadeus_url", "https://test.api.amadeus.com")
	v.SetDefault("amadeus_token_cache", true)
	v.SetDefault("opencage_url", "https://api.opencagedata.com")

	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		// Fallback to conventional locations for local dev
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/planner")
	}

	if err := v.ReadInConfig(); err != nil {
		log.Printf("no config file found, using defaults + env vars: %v", err)
	}

	v.AutomaticEnv()

	pt, err := time.ParseDuration(v.GetString("plan_timeout"))
	if err != nil {
		log.Fatalf("bad plan_timeout: %v", err)
	}
	ut, err := time.ParseDuration(v.GetString("upstream_timeout"))
	if err != nil {
		log.Fatalf("bad upstream_timeout: %v", err)
	}

	cfg := &Config{
		Addr:                v.GetString("addr"),
		JWTSecret:           v.GetString("jwt_secret"),
		PlanTimeout:         pt,
		UpstreamTimeout:     ut,
		TLSCertFile:         os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:          os.Getenv("TLS_KEY_FILE"),
		AmadeusURL:          v.GetString("amadeus_url"),
		AmadeusClientID:     v.GetString("amadeus_clientid"),
		AmadeusClientSecret: v.GetString("amadeus_clientsecret"),
		AmadeusTokenCache:   v.GetBool("amadeus_token_cache"),
		OpenCageURL:         v.GetString("opencage_url"),
		OpenCageKey:         v.GetString("opencage_key"),
		DatabaseURL:         v.GetString("database_url"),
	}

	if cfg.JWTSecret == "" {
		log.Println("jwt_secret is empty; issued tokens are trivially forgeable")
	}
	if cfg.OpenCageKey == "" {
		log.Println("opencage_key is empty; geocoding will report every city as not found")
	}

	return cfg
}
