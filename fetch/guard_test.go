package fetch

import (
	"errors"
	"net"
	"testing"
)

func TestGuard_ValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		guard   Guard
		url     string
		wantErr bool
	}{
		{name: "valid https URL", url: "https://schema.org/Person", wantErr: false},
		{name: "http rejected by zero guard", url: "http://example.com", wantErr: true},
		{name: "http allowed", guard: Guard{AllowHTTP: true}, url: "http://dbpedia.org/resource/Berlin", wantErr: false},
		{name: "ftp rejected", guard: Guard{AllowHTTP: true}, url: "ftp://example.com/file", wantErr: true},
		{name: "localhost rejected", url: "https://localhost:8080", wantErr: true},
		{name: "127.0.0.1 rejected", url: "https://127.0.0.1/path", wantErr: true},
		{name: ".local domain rejected", url: "https://myserver.local/api", wantErr: true},
		{name: ".internal domain rejected", url: "https://app.internal/api", wantErr: true},
		{name: "private IP 192.168.x.x rejected", url: "https://192.168.1.1/path", wantErr: true},
		{name: "private IP 10.x.x.x rejected", url: "https://10.0.0.1/path", wantErr: true},
		{name: "CGNAT rejected", url: "https://100.64.1.1/", wantErr: true},
		{name: "private allowed", guard: Guard{AllowHTTP: true, AllowPrivate: true}, url: "http://127.0.0.1:9999/", wantErr: false},
		{name: "missing host", url: "https:///path", wantErr: true},
		{name: "invalid URL", url: "not-a-url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBlockedURL) {
				t.Errorf("ValidateURL(%q) error %v does not wrap ErrBlockedURL", tt.url, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.5.4", true},
		{"192.168.0.1", true},
		{"169.254.169.254", true},
		{"100.100.100.100", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"::ffff:192.168.1.1", true},
		{"8.8.8.8", false},
		{"151.101.1.69", false},
		{"2606:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.expected {
				t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestOrigin(t *testing.T) {
	got, err := Origin("https://query.wikidata.org/sparql?query=x")
	if err != nil {
		t.Fatalf("Origin: %v", err)
	}
	if got != "https://query.wikidata.org" {
		t.Errorf("Origin = %q", got)
	}
	if _, err := Origin("/relative"); err == nil {
		t.Error("expected error for relative URL")
	}
}
