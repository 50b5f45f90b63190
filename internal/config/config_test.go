package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ESCHED_SUBSCRIPTION_URL", "https://sub.example.com/link?token=abc")
	t.Setenv("ESCHED_REDIS_ADDR", "localhost:6379")
}

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustClock(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		hour      int
		minute    int
		wantPanic bool
	}{
		{name: "default", value: "", hour: 0, minute: 10},
		{name: "afternoon", value: "13:45", hour: 13, minute: 45},
		{name: "garbage", value: "noon", wantPanic: true},
		{name: "out of range", value: "25:00", wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_CLOCK", tt.value)
			}
			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("mustClock() should have panicked")
					}
				}()
			}

			h, m := mustClock("TEST_CLOCK", "00:10")
			if !tt.wantPanic && (h != tt.hour || m != tt.minute) {
				t.Errorf("mustClock() = %02d:%02d, want %02d:%02d", h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestMustMode(t *testing.T) {
	t.Setenv("TEST_MODE", "DEBUG")
	if got := mustMode("TEST_MODE", ModeRelease); got != ModeDebug {
		t.Errorf("mustMode() = %v, want %v", got, ModeDebug)
	}

	t.Setenv("TEST_MODE", "staging")
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("mustMode() should have panicked on unknown mode")
		}
	}()
	mustMode("TEST_MODE", ModeRelease)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.Mode != ModeRelease {
		t.Errorf("Mode = %v, want %v", cfg.Mode, ModeRelease)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.HTTPMaxConnsPerHost != 3 {
		t.Errorf("HTTPMaxConnsPerHost = %d, want 3", cfg.HTTPMaxConnsPerHost)
	}
	if cfg.HTTPKeepAlive != 15*time.Second {
		t.Errorf("HTTPKeepAlive = %v, want 15s", cfg.HTTPKeepAlive)
	}
	if cfg.SubscriptionInterval != 10*time.Minute {
		t.Errorf("SubscriptionInterval = %v, want 10m", cfg.SubscriptionInterval)
	}
	if cfg.TemplateInterval != 15*24*time.Hour {
		t.Errorf("TemplateInterval = %v, want 360h", cfg.TemplateInterval)
	}
	if cfg.CheckinHour != 0 || cfg.CheckinMinute != 10 {
		t.Errorf("check-in at %02d:%02d, want 00:10", cfg.CheckinHour, cfg.CheckinMinute)
	}
	if cfg.CheckinEnabled() {
		t.Error("CheckinEnabled() = true without airport settings")
	}
	if cfg.TemplateEnabled() {
		t.Error("TemplateEnabled() = true without converter host")
	}
}

func TestLoadRejectsOutputOverTemplate(t *testing.T) {
	setRequired(t)
	t.Setenv("ESCHED_TEMPLATE_FILE", "config/clash.yaml")
	t.Setenv("ESCHED_OUTPUT_FILE", "./config/../config/clash.yaml")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked when output overwrites the template")
		}
	}()
	Load()
}

func TestLoadRequiresConverterParams(t *testing.T) {
	setRequired(t)
	t.Setenv("ESCHED_CONVERTER_HOST", "https://convert.example.com/sub")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked without converter url/config")
		}
	}()
	Load()
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"10.0.0.0/8", []string{"10.0.0.0/8"}},
		{` 10.0.0.0/8 , "127.0.0.1",, `, []string{"10.0.0.0/8", "127.0.0.1"}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
