package config

import (
	"flag"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/dmitrijs2005/linkvault/internal/flagx"
)

var serverFlags = []string{
	"-a", "-l", "-w", "-d", "-s", "-t", "-r", "-x", "-f",
	"-u", "-p", "-b", "-g", "-e", "-q", "-o", "-y", "-k", "-m", "-n", "-i", "-z",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-l string   HTTP bind address (e.g., ":8080")
//	-w string   public base URL for share links
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-x string   blob backend: s3 | fs
//	-f string   blob directory for the fs backend
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-q string   default quota (e.g., "1GiB", "500m")
//	-z string   max upload request size (e.g., "5GiB")
//	-o int      external fetch timeout, seconds
//	-y string   payment gateway: razorpay | sandbox
//	-k string   payment gateway key id
//	-m string   payment gateway key secret
//	-n string   payment currency
//	-i int      link reaper interval, minutes (0 disables)
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.PublicBaseURL, "w", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.BlobBackend, "x", config.BlobBackend, "blob backend (s3|fs)")
	fs.StringVar(&config.BlobDir, "f", config.BlobDir, "blob directory")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	defaultQuota := fs.String("q", "", "default storage quota (current: "+units.BytesSize(float64(config.DefaultQuota))+")")
	maxUpload := fs.String("z", "", "max upload size (current: "+units.BytesSize(float64(config.MaxUploadSize))+")")
	fetchTimeout := fs.Int("o", int(config.FetchTimeout.Seconds()), "external fetch timeout (in seconds)")

	fs.StringVar(&config.PaymentGateway, "y", config.PaymentGateway, "payment gateway (razorpay|sandbox)")
	fs.StringVar(&config.PaymentKeyID, "k", config.PaymentKeyID, "payment gateway key id")
	fs.StringVar(&config.PaymentKeySecret, "m", config.PaymentKeySecret, "payment gateway key secret")
	fs.StringVar(&config.PaymentCurrency, "n", config.PaymentCurrency, "payment currency")

	reaperInterval := fs.Int("i", int(config.LinkReaperInterval.Minutes()), "link reaper interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *defaultQuota != "" {
		quota, err := ParseSize(*defaultQuota)
		if err != nil {
			panic(err)
		}
		config.DefaultQuota = quota
	}
	if *maxUpload != "" {
		n, err := ParseSize(*maxUpload)
		if err != nil {
			panic(err)
		}
		config.MaxUploadSize = n
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.FetchTimeout = time.Duration(*fetchTimeout) * time.Second
	config.LinkReaperInterval = time.Duration(*reaperInterval) * time.Minute
}
