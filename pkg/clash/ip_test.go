package clash

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIpifyResolver(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"ipv4", http.StatusOK, "203.0.113.7\n", "203.0.113.7", false},
		{"ipv6", http.StatusOK, "2001:db8::1", "2001:db8::1", false},
		{"garbage", http.StatusOK, "<html>", "", true},
		{"server error", http.StatusInternalServerError, "203.0.113.7", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ip, err := NewIpifyResolver(server.URL, 5*time.Second).CurrentPublicIP(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %s", ip)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ip != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, ip)
			}
		})
	}
}

func TestIpifyResolver_HTTPClient(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/plain" {
			t.Errorf("Expected Accept text/plain, got %q", r.Header.Get("Accept"))
		}
		w.Write([]byte("198.51.100.23"))
	}))
	defer server.Close()

	if _, err := NewIpifyResolver(server.URL, 5*time.Second).CurrentPublicIP(context.Background()); err == nil {
		t.Error("Expected an error for an untrusted certificate")
	}

	ip, err := NewIpifyResolverWithHTTPClient(server.URL, server.Client()).CurrentPublicIP(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ip != "198.51.100.23" {
		t.Errorf("Expected 198.51.100.23, got %s", ip)
	}
}

func TestStaticIP(t *testing.T) {
	ip, err := StaticIP(" 198.51.100.4 ").CurrentPublicIP(context.Background())
	if err != nil || ip != "198.51.100.4" {
		t.Errorf("Expected 198.51.100.4, got %s (%v)", ip, err)
	}

	if _, err := StaticIP("nope").CurrentPublicIP(context.Background()); err == nil {
		t.Error("Expected an error for an invalid address")
	}
}

func TestResolveIP(t *testing.T) {
	if _, err := resolveIP(context.Background(), nil); !errors.Is(err, ErrFailedGetIP) {
		t.Errorf("Expected FAILED_GET_IP, got %v", err)
	}

	_, err := resolveIP(context.Background(), StaticIP("nope"))
	if !errors.Is(err, ErrFailedGetIP) {
		t.Errorf("Expected FAILED_GET_IP, got %v", err)
	}
}
