package config

import (
	"flag"
	"os"
	"time"

	"github.com/dverhagen/twikeysync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   webhook bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-k string   provider API key
//	-m string   merchant id
//	-i int      feed pull interval, seconds
//	-t string   default mandate contract template
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-m", "-i", "-t", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.WebhookAddr, "a", config.WebhookAddr, "address and port for the webhook server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.APIKey, "k", config.APIKey, "provider API key")
	fs.StringVar(&config.MerchantID, "m", config.MerchantID, "merchant id")

	pullInterval := fs.Int("i", int(config.PullInterval.Seconds()), "feed pull interval (in seconds)")

	fs.StringVar(&config.ContractTemplate, "t", config.ContractTemplate, "default mandate contract template")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PullInterval = time.Duration(*pullInterval) * time.Second
}
