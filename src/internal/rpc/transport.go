package rpc

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ValidateProxyURL 验证代理URL格式，空字符串表示不使用代理
func ValidateProxyURL(proxyURL string) error {
	if strings.TrimSpace(proxyURL) == "" {
		return nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return fmt.Errorf("unsupported proxy scheme: %s (supported: http, https, socks5)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy host cannot be empty")
	}

	return nil
}

// NewHTTPClient 创建节点请求使用的 HTTP 客户端，proxyURL 非空时走代理
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if err := ValidateProxyURL(proxyURL); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
	if p := strings.TrimSpace(proxyURL); p != "" {
		u, _ := url.Parse(p)
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// Endpoint 根据 scheme/host/port 拼出节点地址
func Endpoint(scheme, host string, port int) string {
	if scheme == "" {
		scheme = "http"
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}
