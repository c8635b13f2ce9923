package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"triarb-detector/internal/config"
)

// Credentials holds the API key triplet used to sign trading requests.
type Credentials struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Auth signs REST requests against the exchange's trading endpoints using
// HMAC-SHA256 over "timestamp + method + path [+ body]", the scheme common
// to centralized spot exchanges (Binance, Coinbase-style key auth) — there is
// no on-chain settlement in this domain, so there is nothing analogous to an
// L1 wallet signature to derive credentials from.
type Auth struct {
	creds Credentials
}

// NewAuth creates an Auth instance from config.
func NewAuth(cfg config.Config) (*Auth, error) {
	if cfg.API.ApiKey == "" || cfg.API.Secret == "" {
		return nil, fmt.Errorf("auth: api_key and secret are required")
	}
	return &Auth{
		creds: Credentials{
			ApiKey:     cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		},
	}, nil
}

// Credentials returns the configured key triplet.
func (a *Auth) Credentials() Credentials {
	return a.creds
}

// Headers generates the signed headers for a trading request.
func (a *Auth) Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}

	return map[string]string{
		"X-API-KEY":        a.creds.ApiKey,
		"X-API-SIGNATURE":  sig,
		"X-API-TIMESTAMP":  timestamp,
		"X-API-PASSPHRASE": a.creds.Passphrase,
	}, nil
}

// buildHMAC computes the HMAC-SHA256 signature for a trading request.
// message = timestamp + method + requestPath [+ body]
func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		// fall back to using the configured secret verbatim — some exchanges
		// hand out raw (non-base64) secrets.
		secretBytes = []byte(a.creds.Secret)
	}

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
