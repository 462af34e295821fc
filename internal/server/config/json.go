package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dverhagen/twikeysync/internal/flagx"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. The pull interval is expressed in seconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; its fields are copied into the runtime Config.
type JsonConfig struct {
	Enabled             bool   `json:"enabled"`
	APIKey              string `json:"api_key"`
	MerchantID          string `json:"merchant_id"`
	Sandbox             bool   `json:"sandbox"`
	BaseURL             string `json:"base_url"`
	AppURL              string `json:"app_url"`
	ContractTemplate    string `json:"contract_template"`
	PaymentMethod       string `json:"payment_method"`
	WebhookAddr         string `json:"webhook_addr"`
	DatabaseDSN         string `json:"database_dsn"`
	PullIntervalSeconds int    `json:"pull_interval_seconds"`
	S3RootUser          string `json:"s3_root_user"`
	S3RootPassword      string `json:"s3_root_password"`
	S3Bucket            string `json:"s3_bucket"`
	S3Region            string `json:"s3_region"`
	S3BaseEndpoint      string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config command-line
// flags; without them no JSON file is loaded. An unreadable or invalid
// file panics: a half-applied config is worse than a crash at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.Enabled = c.Enabled
	config.APIKey = c.APIKey
	config.MerchantID = c.MerchantID
	config.Sandbox = c.Sandbox
	config.BaseURLOverride = c.BaseURL
	config.AppURLOverride = c.AppURL
	config.ContractTemplate = c.ContractTemplate
	config.PaymentMethod = c.PaymentMethod
	config.WebhookAddr = c.WebhookAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.PullInterval = time.Duration(c.PullIntervalSeconds) * time.Second
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
