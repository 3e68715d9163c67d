package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func seededStore(t *testing.T) *InMemoryStore {
	t.Helper()

	store := NewInMemoryStore()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	puts := [][2]string{
		{"target_os", "Ubuntu 20.04"},
		{"open_ports", "22, 80, 443"},
		{"ssh_credentials", "root:toor"},
	}
	for _, kv := range puts {
		if err := store.Put(ctx, "user_a:memories", kv[0], kv[1]); err != nil {
			t.Fatalf("Put(%s) error = %v", kv[0], err)
		}
	}
	return store
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	record, err := store.Get(ctx, "user_a:memories", "target_os")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Value != "Ubuntu 20.04" {
		t.Errorf("Value = %q", record.Value)
	}

	if err := store.Put(ctx, "user_a:memories", "target_os", "Ubuntu 22.04"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	record, err = store.Get(ctx, "user_a:memories", "target_os")
	if err != nil {
		t.Fatalf("Get() after update error = %v", err)
	}
	if record.Value != "Ubuntu 22.04" {
		t.Errorf("updated Value = %q", record.Value)
	}

	if err := store.Delete(ctx, "user_a:memories", "target_os"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "user_a:memories", "target_os"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "user_a:memories", "target_os"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreNamespaceIsolation(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "user_b:memories", "target_os"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-namespace Get() error = %v, want ErrNotFound", err)
	}

	records, err := store.List(ctx, "user_b:memories")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("foreign namespace has %d records", len(records))
	}
}

func TestInMemoryStoreSearch(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	records, err := store.Search(ctx, "user_a:memories", "ports", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 1 || records[0].Key != "open_ports" {
		t.Fatalf("Search(ports) = %+v", records)
	}

	// Case-insensitive, matches values too.
	records, _ = store.Search(ctx, "user_a:memories", "UBUNTU", 10)
	if len(records) != 1 || records[0].Key != "target_os" {
		t.Errorf("Search(UBUNTU) = %+v", records)
	}

	// Empty query returns everything, most recent first.
	records, _ = store.Search(ctx, "user_a:memories", "", 10)
	if len(records) != 3 {
		t.Fatalf("Search(\"\") returned %d records", len(records))
	}
	if records[0].Key != "ssh_credentials" || records[2].Key != "target_os" {
		t.Errorf("recency order = [%s %s %s]", records[0].Key, records[1].Key, records[2].Key)
	}

	// Limit applies after ordering.
	records, _ = store.Search(ctx, "user_a:memories", "", 2)
	if len(records) != 2 || records[0].Key != "ssh_credentials" {
		t.Errorf("limited search = %+v", records)
	}
}

func TestSearchReturnsClones(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	records, _ := store.Search(ctx, "user_a:memories", "ports", 1)
	records[0].Value = "tampered"

	fresh, _ := store.Get(ctx, "user_a:memories", "open_ports")
	if fresh.Value != "22, 80, 443" {
		t.Errorf("store mutated through returned record: %q", fresh.Value)
	}
}

func TestNamespace(t *testing.T) {
	if got := Namespace("user_ab12cd34"); got != "user_ab12cd34:memories" {
		t.Errorf("Namespace() = %q", got)
	}
}

func TestManageToolActions(t *testing.T) {
	store := NewInMemoryStore()
	tool := NewManageTool(store, "user_a:memories")
	ctx := context.Background()

	res, err := tool.Execute(ctx, json.RawMessage(`{"action":"create","key":"target_os","value":"Debian 12"}`))
	if err != nil {
		t.Fatalf("Execute(create) error = %v", err)
	}
	if res.IsError || !strings.Contains(res.Content, "target_os") {
		t.Errorf("create result = %+v", res)
	}

	record, err := store.Get(ctx, "user_a:memories", "target_os")
	if err != nil || record.Value != "Debian 12" {
		t.Fatalf("stored record = %+v, err %v", record, err)
	}

	res, _ = tool.Execute(ctx, json.RawMessage(`{"action":"update","key":"target_os","value":"Debian 13"}`))
	if res.IsError {
		t.Errorf("update result = %+v", res)
	}
	record, _ = store.Get(ctx, "user_a:memories", "target_os")
	if record.Value != "Debian 13" {
		t.Errorf("updated value = %q", record.Value)
	}

	res, _ = tool.Execute(ctx, json.RawMessage(`{"action":"delete","key":"target_os"}`))
	if res.IsError {
		t.Errorf("delete result = %+v", res)
	}
	if _, err := store.Get(ctx, "user_a:memories", "target_os"); !errors.Is(err, ErrNotFound) {
		t.Error("record survived delete")
	}
}

func TestManageToolRejectsBadInput(t *testing.T) {
	tool := NewManageTool(NewInMemoryStore(), "ns")
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
	}{
		{"missing value", `{"action":"create","key":"k"}`},
		{"empty key", `{"action":"create","key":"  ","value":"v"}`},
		{"unknown action", `{"action":"drop","key":"k"}`},
		{"delete missing", `{"action":"delete","key":"ghost"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Execute(ctx, json.RawMessage(tt.input))
			if err != nil {
				t.Fatalf("Execute() returned Go error: %v", err)
			}
			if !res.IsError {
				t.Errorf("result = %+v, want error result", res)
			}
		})
	}
}

func TestSearchToolFormatting(t *testing.T) {
	store := seededStore(t)
	tool := NewSearchTool(store, "user_a:memories")
	ctx := context.Background()

	res, err := tool.Execute(ctx, json.RawMessage(`{"query":"ports"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Content, "Found 1 memory:") {
		t.Errorf("Content = %q", res.Content)
	}
	if !strings.Contains(res.Content, "1. open_ports: 22, 80, 443") {
		t.Errorf("Content = %q", res.Content)
	}

	res, _ = tool.Execute(ctx, json.RawMessage(`{"query":"flux capacitor"}`))
	if res.IsError || !strings.Contains(res.Content, "No memories found") {
		t.Errorf("empty result = %+v", res)
	}
}

func TestSearchToolLimit(t *testing.T) {
	store := seededStore(t)
	tool := NewSearchTool(store, "user_a:memories")

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"","limit":2}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.Count(res.Content, "\n"); got != 2 {
		t.Errorf("result lines = %d, content %q", got+1, res.Content)
	}
}
