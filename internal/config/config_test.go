package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewSystemConfig(NewViper())
	if err != nil {
		t.Fatalf("NewSystemConfig failed: %v", err)
	}
	if cfg.ServerConfig.MaxPayload != defs.DefaultMaxPayload {
		t.Fatalf("max payload = %d, want %d", cfg.ServerConfig.MaxPayload, defs.DefaultMaxPayload)
	}
	if cfg.ServerConfig.WriteTimeout != defs.ServerWriteTimeout || cfg.ServerConfig.ReactorTick != defs.ReactorTick {
		t.Fatalf("server timings = %+v", cfg.ServerConfig)
	}
	if cfg.ClientConfig.Timeout != defs.ClientTimeout || cfg.ClientConfig.PollDelay != defs.ClientPollDelay {
		t.Fatalf("client config = %+v", cfg.ClientConfig)
	}
	if cfg.HistoryConfig.Backend != HistoryMemory || cfg.LogLevel != "info" {
		t.Fatalf("history backend %q, log level %q", cfg.HistoryConfig.Backend, cfg.LogLevel)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TCPB_SERVER_PORT", "54321")
	t.Setenv("TCPB_SERVER_MAXPAYLOAD", "1 MiB")
	t.Setenv("TCPB_CLIENT_POLLDELAY", "250ms")
	t.Setenv("TCPB_HISTORY_BACKEND", "redis")
	t.Setenv("TCPB_JWT_SECRET", "abc")

	cfg, err := NewSystemConfig(NewViper())
	if err != nil {
		t.Fatalf("NewSystemConfig failed: %v", err)
	}
	if cfg.ServerConfig.Port != 54321 || cfg.ServerConfig.Address() != ":54321" {
		t.Fatalf("server = %+v", cfg.ServerConfig)
	}
	if cfg.ServerConfig.MaxPayload != 1<<20 {
		t.Fatalf("max payload = %d", cfg.ServerConfig.MaxPayload)
	}
	if cfg.ClientConfig.PollDelay != 250*time.Millisecond {
		t.Fatalf("poll delay = %v", cfg.ClientConfig.PollDelay)
	}
	if cfg.HistoryConfig.Backend != HistoryRedis || cfg.JwtConfig.Secret != "abc" {
		t.Fatalf("history %q, secret %q", cfg.HistoryConfig.Backend, cfg.JwtConfig.Secret)
	}
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("TCPB_HISTORY_BACKEND", "mongo")
	if _, err := NewSystemConfig(NewViper()); err == nil {
		t.Fatal("unknown history backend must fail")
	}

	t.Setenv("TCPB_HISTORY_BACKEND", "memory")
	t.Setenv("TCPB_SERVER_MAXPAYLOAD", "lots")
	if _, err := NewSystemConfig(NewViper()); err == nil {
		t.Fatal("unparsable max payload must fail")
	}
}

func TestParseSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "4096", want: 4096},
		{in: "64MiB", want: 64 << 20},
		{in: "1 kB", want: 1000},
		{in: "0", wantErr: true},
		{in: "8 GiB", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInitReader(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test")
	if err := os.WriteFile(env+".env", []byte("TCPB_INIT_READER_PROBE=loaded\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("TCPB_INIT_READER_PROBE") })

	if err := InitReader(env); err != nil {
		t.Fatalf("InitReader failed: %v", err)
	}
	if got := os.Getenv("TCPB_INIT_READER_PROBE"); got != "loaded" {
		t.Fatalf("probe = %q, want loaded", got)
	}
	if err := InitReader(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("missing env file must be ignored, got %v", err)
	}
}
