package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/flagx"
	"github.com/dmitrijs2005/linkvault/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// use timex.Duration ("1m" or integer nanoseconds); DefaultQuota and
// MaxUploadSize are human sizes such as "1GiB". Fields left out of the file keep their current value.
type JsonConfig struct {
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	PublicBaseURL                string          `json:"public_base_url"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BlobBackend                  string          `json:"blob_backend"`
	BlobDir                      string          `json:"blob_dir"`
	S3RootUser                   string          `json:"s3_root_user"`
	S3RootPassword               string          `json:"s3_root_password"`
	S3Bucket                     string          `json:"s3_bucket"`
	S3Region                     string          `json:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint"`
	DefaultQuota                 string          `json:"default_quota"`
	MaxUploadSize                string          `json:"max_upload_size"`
	FetchTimeout                 *timex.Duration `json:"fetch_timeout"`
	PaymentGateway               string          `json:"payment_gateway"`
	PaymentKeyID                 string          `json:"payment_key_id"`
	PaymentKeySecret             string          `json:"payment_key_secret"`
	PaymentCurrency              string          `json:"payment_currency"`
	LinkReaperInterval           *timex.Duration `json:"link_reaper_interval"`
}

// parseJson overlays config with values from the file named by -c/-config.
// Nothing happens when the flag is absent. Unreadable or invalid files panic,
// as do unparsable quota sizes.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.BlobDir, c.BlobDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.FetchTimeout, c.FetchTimeout)
	setString(&config.PaymentGateway, c.PaymentGateway)
	setString(&config.PaymentKeyID, c.PaymentKeyID)
	setString(&config.PaymentKeySecret, c.PaymentKeySecret)
	setString(&config.PaymentCurrency, c.PaymentCurrency)
	setDuration(&config.LinkReaperInterval, c.LinkReaperInterval)

	if c.DefaultQuota != "" {
		config.DefaultQuota = mustParseSize(c.DefaultQuota)
	}
	if c.MaxUploadSize != "" {
		config.MaxUploadSize = mustParseSize(c.MaxUploadSize)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
