package registry

import (
	"testing"
	"time"
)

func TestDecodeInstance(t *testing.T) {
	inst := decodeInstance("host-8083", []byte(`{"address":"10.0.0.5:8083","grpc_address":"10.0.0.5:9092","role":"worker","started_at":"2026-10-01T08:00:00Z"}`))
	if inst.ServiceID != "host-8083" || inst.Address != "10.0.0.5:8083" || inst.Role != RoleWorker {
		t.Fatalf("unexpected instance %+v", inst)
	}
	if !inst.StartedAt.Equal(time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected started_at %v", inst.StartedAt)
	}

	legacy := decodeInstance("old", []byte(" 10.0.0.6:8083\n"))
	if legacy.Address != "10.0.0.6:8083" || legacy.Role != "" {
		t.Fatalf("unexpected legacy instance %+v", legacy)
	}
}

func TestWithRole(t *testing.T) {
	all := []Instance{
		{ServiceID: "a", Role: RoleWorker},
		{ServiceID: "b", Role: RoleAPI},
		{ServiceID: "c"},
	}
	api := WithRole(all, RoleAPI)
	if len(api) != 2 || api[0].ServiceID != "b" || api[1].ServiceID != "c" {
		t.Fatalf("unexpected api instances %+v", api)
	}
	if workers := WithRole(all, RoleWorker); len(workers) != 1 || workers[0].ServiceID != "a" {
		t.Fatalf("unexpected worker instances %+v", workers)
	}
}

func TestServiceKey(t *testing.T) {
	if got := serviceKey("sermon-publisher", "host-8083"); got != "/services/sermon-publisher/host-8083" {
		t.Fatalf("unexpected key %q", got)
	}
}
