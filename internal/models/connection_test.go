package models

import (
	"sync"
	"testing"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		conn   Connection
		expect string
	}{
		{"https default", Connection{Scheme: "https", Host: "pds.example.com", Port: 443}, "https://pds.example.com:443"},
		{"http custom port", Connection{Scheme: "http", Host: "pds.lab.local", Port: 2583}, "http://pds.lab.local:2583"},
		{"localhost", Connection{Scheme: "http", Host: "localhost", Port: 80}, "http://localhost:80"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.conn.BaseURL()
			if got != tc.expect {
				t.Errorf("BaseURL() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestMaskedToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		expect string
	}{
		{"non-empty", "eyJhbGciOi", "••••••••"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &Connection{AccessToken: tc.token}
			if got := c.MaskedToken(); got != tc.expect {
				t.Errorf("MaskedToken() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestConnection_PublicDoesNotLeakToken(t *testing.T) {
	c := &Connection{Name: "old-pds", AccessToken: "secret"}
	p := c.Public()
	if p.AccessToken == "secret" {
		t.Fatal("Public() leaked the access token")
	}
	if c.AccessToken != "secret" {
		t.Error("Public() mutated the original connection")
	}
}

func TestConnectionStore_CRUD(t *testing.T) {
	store := NewConnectionStore()

	conn := &Connection{Name: "old-pds", Host: "localhost"}
	store.Create(conn)
	if conn.ID == "" {
		t.Fatal("Create did not assign an ID")
	}

	got := store.Get(conn.ID)
	if got == nil || got.Name != "old-pds" {
		t.Fatalf("Get(%s) returned %v", conn.ID, got)
	}
	if store.Get("nonexistent") != nil {
		t.Error("Get(nonexistent) should return nil")
	}

	if store.Lookup("old-pds") != conn {
		t.Error("Lookup by name did not find the connection")
	}
	if store.Lookup(conn.ID) != conn {
		t.Error("Lookup by ID did not find the connection")
	}

	if len(store.List()) != 1 {
		t.Fatalf("List() returned %d items, want 1", len(store.List()))
	}

	if !store.Delete(conn.ID) {
		t.Fatal("Delete returned false for existing connection")
	}
	if store.Get(conn.ID) != nil {
		t.Error("Get after Delete should return nil")
	}
	if store.Delete("missing") {
		t.Error("Delete should return false for missing ID")
	}
}

func TestConnectionStore_Concurrent(t *testing.T) {
	store := NewConnectionStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Create(&Connection{Name: "concurrent", Host: "localhost"})
		}()
	}
	wg.Wait()

	list := store.List()
	if len(list) != 50 {
		t.Fatalf("expected 50 connections, got %d", len(list))
	}

	for _, c := range list {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			store.Get(id)
		}(c.ID)
		go func(name string) {
			defer wg.Done()
			store.FindByName(name)
		}(c.Name)
	}
	wg.Wait()
}
