package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string
	BaseURL         string
	DBUrl           string
	PublicDir       string
	TokenSecret     string
	TokenTTL        time.Duration
	TextSampleLimit int
	Debug           bool
}

// ParseFlags reads the command line. Defaults come from the environment,
// optionally seeded by a .env file in the working directory.
func ParseFlags(args []string) (cfg Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return
	}
	err = nil

	fs := flag.NewFlagSet("survey-board", flag.ContinueOnError)

	var host string
	fs.StringVar(&host, "host", env("SURVEY_HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("SURVEY_PORT", 80), "listen port number")
	fs.StringVar(&cfg.BaseURL, "base-url", env("SURVEY_BASE_URL", ""), "public base URL used for image links (default derived from host and port)")
	fs.StringVar(&cfg.DBUrl, "db-url", env("SURVEY_DB_URL", "surveys.sqlite"), "path to SQLite3 DB file")
	fs.StringVar(&cfg.PublicDir, "public-dir", env("SURVEY_PUBLIC_DIR", "public"), "directory holding uploaded images and static files")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("SURVEY_TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", envUint("SURVEY_TOKEN_TTL", 120), "token TTL in seconds")
	fs.IntVar(&cfg.TextSampleLimit, "text-sample", int(envUint("SURVEY_TEXT_SAMPLE", 100)), "max free-text values per question on the dashboard")
	fs.BoolVar(&cfg.Debug, "debug", env("SURVEY_DEBUG", "") == "true", "log at DEBUG level")
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.Url()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter -token-secret")
	case cfg.TextSampleLimit < 1:
		err = errors.New("-text-sample must be positive")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envUint(key string, def uint) uint {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint(n)
}
