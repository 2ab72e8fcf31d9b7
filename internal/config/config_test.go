package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
admins:
  roots: [111, 222]
  review_chat_id: -100500
resources:
  - label: "Chat"
    url: "https://t.me/x"
storage:
  path: ./x.db
broadcast:
  rate_per_sec: 5
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Admins.Roots) != 2 || cfg.Admins.ReviewChatID != -100500 {
		t.Fatalf("admins = %+v", cfg.Admins)
	}
	if cfg.Rate() != 5 {
		t.Fatalf("rate = %v", cfg.Rate())
	}
	if len(cfg.Resources) != 1 || cfg.Resources[0].Label != "Chat" {
		t.Fatalf("resources = %+v", cfg.Resources)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+"\ntypoed_section:\n  x: 1\n"))
	if err == nil {
		t.Fatalf("unknown key accepted")
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	cases := []struct {
		name string
		body string
		want string
	}{
		{"no token", strings.Replace(validYAML, `token: "123:abc"`, `token: ""`, 1), "token"},
		{"no roots", strings.Replace(validYAML, "roots: [111, 222]", "roots: []", 1), "roots"},
		{"no review chat", strings.Replace(validYAML, "review_chat_id: -100500", "review_chat_id: 0", 1), "review_chat_id"},
		{"digest without spec", validYAML + "\ndigest:\n  enabled: true\n", "digest.spec"},
		{"resource without url", strings.Replace(validYAML, `url: "https://t.me/x"`, `url: ""`, 1), "resources"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env:token")
	body := strings.Replace(validYAML, `token: "123:abc"`, `token: ""`, 1)
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env:token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestStoragePathDefault(t *testing.T) {
	body := strings.Replace(validYAML, "path: ./x.db", `path: ""`, 1)
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "./teambot.db" {
		t.Fatalf("default path = %q", cfg.Storage.Path)
	}
}

func TestParseDuration(t *testing.T) {
	def := 5 * time.Second
	if d := ParseDuration("", def); d != def {
		t.Fatalf("empty = %v", d)
	}
	if d := ParseDuration("garbage", def); d != def {
		t.Fatalf("garbage = %v", d)
	}
	if d := ParseDuration("-3s", def); d != def {
		t.Fatalf("negative = %v", d)
	}
	if d := ParseDuration("90s", def); d != 90*time.Second {
		t.Fatalf("90s = %v", d)
	}
}

func TestRateDefault(t *testing.T) {
	var c Config
	if c.Rate() != 20 {
		t.Fatalf("default rate = %v", c.Rate())
	}
}
