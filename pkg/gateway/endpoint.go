package gateway

import (
	"net/url"
	"path"
	"strings"

	"github.com/yanun0323/errors"

	"hearth/pkg/exception"
)

// ResolveEndpoint derives the gateway URL.
//
// An http(s) apiBase is rewritten to ws(s) and its leading restPrefix segment is replaced by
// gatewayPath. Otherwise the URL is derived from origin's scheme and host plus gatewayPath.
func ResolveEndpoint(apiBase, origin, restPrefix, gatewayPath string) (*url.URL, error) {
	if u, ok := parseHTTP(apiBase); ok {
		scheme := "ws"
		if u.Scheme == "https" {
			scheme = "wss"
		}
		return &url.URL{
			Scheme:   scheme,
			User:     u.User,
			Host:     u.Host,
			Path:     rewritePath(u.Path, restPrefix, gatewayPath),
			RawQuery: u.RawQuery,
		}, nil
	}

	if u, ok := parseHTTP(origin); ok {
		scheme := "ws"
		if u.Scheme == "https" {
			scheme = "wss"
		}
		return &url.URL{
			Scheme: scheme,
			Host:   u.Host,
			Path:   cleanPrefix(gatewayPath),
		}, nil
	}

	return nil, errors.Wrap(exception.ErrNoEndpoint, "resolve endpoint").
		With("apiBase", apiBase).
		With("origin", origin)
}

// WithToken returns endpoint with the token attached as the param query parameter.
func WithToken(endpoint, param, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint").With("endpoint", endpoint)
	}
	return withToken(u, param, token), nil
}

func withToken(u *url.URL, param, token string) string {
	cp := *u
	query := cp.Query()
	query.Set(param, token)
	cp.RawQuery = query.Encode()
	return cp.String()
}

func parseHTTP(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = strings.ToLower(u.Scheme)
		return u, true
	default:
		return nil, false
	}
}

// rewritePath swaps the leading restPrefix segment for gatewayPath, or appends gatewayPath.
func rewritePath(p, restPrefix, gatewayPath string) string {
	restPrefix = cleanPrefix(restPrefix)
	gatewayPath = cleanPrefix(gatewayPath)
	p = strings.TrimSuffix(p, "/")

	if restPrefix != "/" {
		if p == restPrefix {
			return gatewayPath
		}
		if strings.HasPrefix(p, restPrefix+"/") {
			return path.Join(gatewayPath, strings.TrimPrefix(p, restPrefix))
		}
	}
	if p == "" {
		return gatewayPath
	}
	return path.Join(p, gatewayPath)
}

func cleanPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
