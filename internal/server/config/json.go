package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/walletkeeper/internal/flagx"
	"github.com/dmitrijs2005/walletkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the -c/-config file. Durations use
// timex.Duration so they can be written as "15s" or as nanoseconds.
// Absent fields leave the current value untouched.
type JsonConfig struct {
	HTTPAddr    string `json:"http_addr"`
	DatabaseDSN string `json:"database_dsn"`
	LogLevel    string `json:"log_level"`

	SecretKey       string         `json:"jwt_secret"`
	SessionValidity timex.Duration `json:"session_validity"`
	CodeValidity    timex.Duration `json:"otp_validity"`
	MasterKey       string         `json:"master_key"`

	EthRPCURL       string         `json:"eth_rpc_url"`
	ChainName       string         `json:"chain_name"`
	EtherscanURL    string         `json:"etherscan_api_url"`
	EtherscanAPIKey string         `json:"etherscan_api_key"`
	EtherscanChain  int64          `json:"etherscan_chain_id"`
	UpstreamTimeout timex.Duration `json:"upstream_timeout"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`

	ReconcileInterval timex.Duration `json:"reconcile_interval"`
	CORSOrigins       []string       `json:"cors_origins"`
}

// parseJson loads the file named by -c or -config, if any, and copies every
// non-zero field into config.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.MasterKey, c.MasterKey)
	setString(&config.EthRPCURL, c.EthRPCURL)
	setString(&config.ChainName, c.ChainName)
	setString(&config.EtherscanURL, c.EtherscanURL)
	setString(&config.EtherscanAPIKey, c.EtherscanAPIKey)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)

	if c.EtherscanChain != 0 {
		config.EtherscanChain = c.EtherscanChain
	}
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	if c.SessionValidity.IsSet() {
		config.SessionValidity = c.SessionValidity.Duration
	}
	if c.CodeValidity.IsSet() {
		config.CodeValidity = c.CodeValidity.Duration
	}
	if c.UpstreamTimeout.IsSet() {
		config.UpstreamTimeout = c.UpstreamTimeout.Duration
	}
	if c.ReconcileInterval.IsSet() {
		config.ReconcileInterval = c.ReconcileInterval.Duration
	}
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
