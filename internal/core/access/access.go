// Package access decides whether a caller may reach a path. The same Decide
// call backs the edge middleware and the per-handler checks, so the two
// enforcement points cannot disagree.
package access

import (
	"net/url"
	"path"
	"strings"

	"github.com/nodi/console-identity/internal/core/domain"
)

// Class is a route classification.
type Class int

const (
	Public Class = iota
	Protected
	AdminOnly
	AuthOnly
)

func (c Class) String() string {
	switch c {
	case Protected:
		return "protected"
	case AdminOnly:
		return "adminOnly"
	case AuthOnly:
		return "authOnly"
	}
	return "public"
}

// Decision is the outcome for one (session, path) pair.
type Decision string

const (
	Allow           Decision = "ALLOW"
	RedirectToLogin Decision = "REDIRECT_TO_LOGIN"
	RedirectToHome  Decision = "REDIRECT_TO_HOME"
)

// Policy holds the route prefixes for each class. A prefix matches the path
// itself and every path below it.
type Policy struct {
	AdminOnly []string
	Protected []string
	AuthOnly  []string
	LoginPath string
	HomePath  string
}

// DefaultPolicy is the console's route table.
func DefaultPolicy() Policy {
	return Policy{
		AdminOnly: []string{"/admin", "/api/admin"},
		Protected: []string{"/dashboard", "/gateways", "/settings", "/nodi-edge", "/api/auth/session", "/api/tenants"},
		AuthOnly:  []string{"/login", "/signup", "/forgot-password", "/reset-password"},
		LoginPath: "/login",
		HomePath:  "/",
	}
}

// Classify returns the class of p. adminOnly wins over protected, which wins
// over authOnly.
func (p Policy) Classify(urlPath string) Class {
	clean := normalize(urlPath)
	switch {
	case matchAny(p.AdminOnly, clean):
		return AdminOnly
	case matchAny(p.Protected, clean):
		return Protected
	case matchAny(p.AuthOnly, clean):
		return AuthOnly
	}
	return Public
}

// Decide evaluates session (nil when unauthenticated) against urlPath.
func (p Policy) Decide(s *domain.Session, urlPath string) Decision {
	switch p.Classify(urlPath) {
	case AdminOnly:
		if !s.Authenticated() {
			return RedirectToLogin
		}
		if !s.IsAdmin() {
			return RedirectToHome
		}
	case Protected:
		if !s.Authenticated() {
			return RedirectToLogin
		}
	case AuthOnly:
		if s.Authenticated() {
			return RedirectToHome
		}
	}
	return Allow
}

// Location is where a redirecting decision sends the caller. It is empty for
// Allow.
func (p Policy) Location(d Decision, urlPath string) string {
	switch d {
	case RedirectToLogin:
		return p.LoginPath + "?callbackUrl=" + url.QueryEscape(normalize(urlPath))
	case RedirectToHome:
		return p.HomePath
	}
	return ""
}

var defaultPolicy = DefaultPolicy()

// Decide evaluates the default policy.
func Decide(s *domain.Session, urlPath string) Decision {
	return defaultPolicy.Decide(s, urlPath)
}

func normalize(urlPath string) string {
	if urlPath == "" {
		return "/"
	}
	if i := strings.IndexAny(urlPath, "?#"); i >= 0 {
		urlPath = urlPath[:i]
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	return path.Clean(urlPath)
}

func matchAny(prefixes []string, clean string) bool {
	for _, prefix := range prefixes {
		if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
			return true
		}
	}
	return false
}
