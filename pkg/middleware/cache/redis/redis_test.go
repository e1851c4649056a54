package redis

import "testing"

func TestNewStore_InvalidURL(t *testing.T) {
	tests := []string{"", "http://localhost:6379", "redis://localhost:6379/notadb"}
	for _, url := range tests {
		t.Run(url, func(t *testing.T) {
			if _, err := NewStore(url); err == nil {
				t.Errorf("NewStore(%q) expected error", url)
			}
		})
	}
}

func TestNewStore_ValidURL(t *testing.T) {
	s, err := NewStore("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
}
