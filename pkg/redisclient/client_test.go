package redisclient

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"sermon-publisher/pkg/config"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache", Port: 6380, PoolSize: 7, EnableTLS: true})
	if opts.Addr != "cache:6380" || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.DialTimeout != 5*time.Second || opts.ReadTimeout != 3*time.Second {
		t.Fatalf("expected default timeouts, got dial=%s read=%s", opts.DialTimeout, opts.ReadTimeout)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected tls config")
	}
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	cli, err := New(context.Background(), config.RedisConfig{Host: mr.Host(), Port: port})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cli.Close()
	if err := cli.Raw().Set(context.Background(), Key("probe"), "1", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("sermon:probe") {
		t.Fatal("expected namespaced key")
	}

	host := mr.Host()
	mr.Close()
	if _, err := New(context.Background(), config.RedisConfig{Host: host, Port: port, DialTimeout: 200 * time.Millisecond}); err == nil || !strings.Contains(err.Error(), "ping redis") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("batch", "b-1", "activity"); got != "sermon:batch:b-1:activity" {
		t.Fatalf("unexpected key %q", got)
	}
}
