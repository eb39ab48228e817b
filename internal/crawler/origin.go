package crawler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// OriginPolicy selects how a node identifier is reduced to an origin key.
type OriginPolicy string

// Supported origin policies.
const (
	// OriginSchemeHost keys on scheme and host (including any port).
	OriginSchemeHost OriginPolicy = "scheme_host"
	// OriginHost keys on the hostname alone, so http and https share an origin.
	OriginHost OriginPolicy = "host"
	// OriginSite keys on the registrable domain (eTLD+1).
	OriginSite OriginPolicy = "site"
)

// DefaultOriginPolicy is used when a request leaves the policy empty.
const DefaultOriginPolicy = OriginSchemeHost

// Valid reports whether p names a supported policy.
func (p OriginPolicy) Valid() bool {
	switch p {
	case OriginSchemeHost, OriginHost, OriginSite:
		return true
	default:
		return false
	}
}

// OriginOf returns the origin key of node under the default policy.
func OriginOf(node string) (string, error) {
	return DefaultOriginPolicy.OriginOf(node)
}

// SameOrigin compares two origin keys. The empty key never matches.
func SameOrigin(a, b string) bool {
	return a != "" && a == b
}

// OriginOf returns the origin key of node under p. Nodes that are not
// absolute locators fail with a *MalformedNodeError.
func (p OriginPolicy) OriginOf(node string) (string, error) {
	u, err := parseAbsolute(node)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	switch p {
	case OriginHost:
		return host, nil
	case OriginSite:
		return registrableDomain(host), nil
	case OriginSchemeHost, "":
		return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
	default:
		return "", fmt.Errorf("unknown origin policy %q", p)
	}
}

func parseAbsolute(node string) (*url.URL, error) {
	if strings.TrimSpace(node) == "" {
		return nil, &MalformedNodeError{Node: node, Err: errors.New("empty identifier")}
	}
	u, err := url.Parse(node)
	if err != nil {
		return nil, &MalformedNodeError{Node: node, Err: err}
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, &MalformedNodeError{Node: node, Err: errors.New("not an absolute locator")}
	}
	return u, nil
}

func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// localhost, bare suffixes and similar hosts have no registrable part.
		return host
	}
	return site
}
