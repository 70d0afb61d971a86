package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadFromString(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	AppConfig = Config{}
	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	loadFromString(t, "app_name: coinpulse\n")

	c := &AppConfig
	if c.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", c.Listen)
	}
	if c.Exchange.BaseURL != "https://api.binance.com" {
		t.Errorf("BaseURL = %q", c.Exchange.BaseURL)
	}
	if len(c.Scanner.Symbols) == 0 {
		t.Error("default symbols missing")
	}
	if got := c.Scanner.Intervals["15m"]; got != 0.21 {
		t.Errorf("15m TSL percent = %v, want 0.21", got)
	}
	if got := c.Scanner.ConfirmMap["1h"]; got != "4h" {
		t.Errorf("1h confirm = %q, want 4h", got)
	}
	if c.Scanner.PollInterval.D() != 10*time.Minute {
		t.Errorf("PollInterval = %v", c.Scanner.PollInterval.D())
	}
	if c.Scanner.Timezone != "Asia/Kolkata" {
		t.Errorf("Timezone = %q", c.Scanner.Timezone)
	}

	// 每个周期都要有打分表
	for interval := range c.Scanner.Intervals {
		sc, ok := c.Scores[interval]
		if !ok {
			t.Fatalf("missing score config for %s", interval)
		}
		if sc.EntryConfidence != 70 || sc.MaxScore != 100 {
			t.Errorf("%s score defaults wrong: %+v", interval, sc)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	loadFromString(t, `
listen: ":9090"
scanner:
  symbols: ["BTCUSDT"]
  intervals:
    4h: 0.3
  poll-interval: 5m
scores:
  4h:
    VolumeSpikeWeight: 30
    TrendWeight: 30
    NoSuppressionWeight: 10
    DivergenceWeight: 10
    RSIWeight: 10
    StochWeight: 10
    RSIOversold: 25
    RSIOverbought: 75
    StochOversold: 15
    StochOverbought: 85
    EntryConfidence: 60
    MaxScore: 100
`)

	c := &AppConfig
	if c.Listen != ":9090" {
		t.Errorf("Listen = %q", c.Listen)
	}
	if len(c.Scanner.Symbols) != 1 || c.Scanner.Symbols[0] != "BTCUSDT" {
		t.Errorf("Symbols = %v", c.Scanner.Symbols)
	}
	if got := c.Scanner.Intervals["4h"]; got != 0.3 {
		t.Errorf("4h TSL percent = %v", got)
	}
	if c.Scanner.PollInterval.D() != 5*time.Minute {
		t.Errorf("PollInterval = %v", c.Scanner.PollInterval.D())
	}
	sc := c.Scores["4h"]
	if sc.VolumeSpikeWeight != 30 || sc.EntryConfidence != 60 {
		t.Errorf("4h score override lost: %+v", sc)
	}
}

func TestDefaultScoreWeightsSumToMax(t *testing.T) {
	sc := DefaultScore()
	sum := sc.VolumeSpikeWeight + sc.TrendWeight + sc.NoSuppressionWeight +
		sc.DivergenceWeight + sc.RSIWeight + sc.StochWeight
	if sum != sc.MaxScore {
		t.Errorf("weights sum %v != MaxScore %v", sum, sc.MaxScore)
	}
}
