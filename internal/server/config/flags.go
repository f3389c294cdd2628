package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-k", "-r", "-t", "-o", "-i", "-l", "-redis"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   master encryption key, 64 hex characters
//	-r string   Ethereum JSON-RPC URL
//	-t int      session validity, minutes
//	-o int      one-time code validity, minutes
//	-i int      reconcile interval, seconds (0 disables the worker)
//	-l string   log level
//	-redis str  Redis address for reconcile locks
//
// os.Args is filtered with flagx.FilterArgs first so that flags owned by
// other components (-c/-config) don't break parsing.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "master encryption key (hex)")
	fs.StringVar(&config.EthRPCURL, "r", config.EthRPCURL, "ethereum RPC URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")

	sessionValidity := fs.Int("t", int(config.SessionValidity.Minutes()), "session validity (in minutes)")
	codeValidity := fs.Int("o", int(config.CodeValidity.Minutes()), "one-time code validity (in minutes)")
	reconcileInterval := fs.Int("i", int(config.ReconcileInterval.Seconds()), "reconcile interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only touch durations that were given explicitly, so sub-minute values
	// from earlier layers survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.SessionValidity = time.Duration(*sessionValidity) * time.Minute
		case "o":
			config.CodeValidity = time.Duration(*codeValidity) * time.Minute
		case "i":
			config.ReconcileInterval = time.Duration(*reconcileInterval) * time.Second
		}
	})

	return nil
}
