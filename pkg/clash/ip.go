package clash

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// DefaultIPResolverURL echoes the caller's public IPv4 address as plain text
const DefaultIPResolverURL = "https://api.ipify.org"

// IPResolver discovers the public IP address that the portal will see
type IPResolver interface {
	CurrentPublicIP(ctx context.Context) (string, error)
}

// IPResolverFunc adapts a function to IPResolver
type IPResolverFunc func(ctx context.Context) (string, error)

func (f IPResolverFunc) CurrentPublicIP(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticIP always resolves to the same address
type StaticIP string

func (s StaticIP) CurrentPublicIP(ctx context.Context) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(string(s)))
	if err != nil {
		return "", fmt.Errorf("invalid static ip %q: %w", string(s), err)
	}
	return addr.String(), nil
}

// IpifyResolver asks an IP echo service for the public address
type IpifyResolver struct {
	URL        string
	httpClient *http.Client
}

func NewIpifyResolver(url string, timeout time.Duration) *IpifyResolver {
	return &IpifyResolver{
		URL:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewIpifyResolverWithHTTPClient uses httpClient, e.g. one with a proxy or
// custom TLS roots
func NewIpifyResolverWithHTTPClient(url string, httpClient *http.Client) *IpifyResolver {
	return &IpifyResolver{URL: url, httpClient: httpClient}
}

func (r *IpifyResolver) CurrentPublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip service returned status %d", resp.StatusCode)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return "", fmt.Errorf("ip service returned %q: %w", strings.TrimSpace(string(body)), err)
	}

	return addr.String(), nil
}

func resolveIP(ctx context.Context, resolver IPResolver) (string, error) {
	if resolver == nil {
		return "", newError(KindFailedGetIP, "no ip resolver configured")
	}
	ip, err := resolver.CurrentPublicIP(ctx)
	if err != nil {
		return "", wrapError(KindFailedGetIP, err)
	}
	return ip, nil
}
