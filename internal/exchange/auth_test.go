package exchange

import (
	"testing"

	"triarb-detector/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		API: config.APIConfig{
			ApiKey:     "key-123",
			Secret:     "c2VjcmV0LWJ5dGVz", // base64("secret-bytes")
			Passphrase: "pass-456",
		},
	}
}

func TestNewAuthRequiresKeyAndSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewAuth(config.Config{}); err == nil {
		t.Error("expected error for missing api_key/secret")
	}

	if _, err := NewAuth(testConfig()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHeadersIncludesSignature(t *testing.T) {
	t.Parallel()

	auth, err := NewAuth(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	headers, err := auth.Headers("POST", "/orders", `{"side":"BUY"}`)
	if err != nil {
		t.Fatal(err)
	}

	if headers["X-API-KEY"] != "key-123" {
		t.Errorf("X-API-KEY = %q, want key-123", headers["X-API-KEY"])
	}
	if headers["X-API-SIGNATURE"] == "" {
		t.Error("X-API-SIGNATURE must not be empty")
	}
	if headers["X-API-TIMESTAMP"] == "" {
		t.Error("X-API-TIMESTAMP must not be empty")
	}
	if headers["X-API-PASSPHRASE"] != "pass-456" {
		t.Errorf("X-API-PASSPHRASE = %q, want pass-456", headers["X-API-PASSPHRASE"])
	}
}

func TestBuildHMACDeterministicForFixedTimestamp(t *testing.T) {
	t.Parallel()

	auth, err := NewAuth(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	sig1, err := auth.buildHMAC("1700000000000", "DELETE", "/orders/abc", "")
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := auth.buildHMAC("1700000000000", "DELETE", "/orders/abc", "")
	if err != nil {
		t.Fatal(err)
	}
	if sig1 != sig2 {
		t.Errorf("signature not deterministic: %q != %q", sig1, sig2)
	}

	sig3, _ := auth.buildHMAC("1700000000000", "DELETE", "/orders/xyz", "")
	if sig1 == sig3 {
		t.Error("signature must change with the request path")
	}
}
