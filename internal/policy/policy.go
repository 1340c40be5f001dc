// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package policy decides which routes require an authenticated principal.
//
// A Policy is an ordered list of rules. The first rule whose method and
// pattern match a request decides; requests no rule matches require
// authentication. Preflight requests are always public.
//
// Patterns use path.Match syntax. A pattern ending in "/**" matches its
// prefix and everything below it.
package policy

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

// Requirement is the authentication state a route demands.
type Requirement int

const (
	Authenticated Requirement = iota
	Public
)

func (r Requirement) String() string {
	if r == Public {
		return "public"
	}
	return "authenticated"
}

// Rule maps a method and path pattern to a requirement. An empty Method
// matches every method.
type Rule struct {
	Method      string
	Pattern     string
	Requirement Requirement
}

func (r Rule) matches(method, p string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	ok, _ := path.Match(r.Pattern, p)
	return ok
}

// Policy is an immutable, ordered rule table.
type Policy struct {
	rules []Rule
}

// New validates rules and returns a Policy evaluating them in order.
func New(rules ...Rule) (*Policy, error) {
	for _, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("policy pattern %q must start with /", r.Pattern)
		}
		if _, err := path.Match(strings.TrimSuffix(r.Pattern, "/**"), "/"); err != nil {
			return nil, fmt.Errorf("policy pattern %q: %w", r.Pattern, err)
		}
	}
	return &Policy{rules: append([]Rule(nil), rules...)}, nil
}

// DefaultRules is the rule table of the application.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/auth/register", Requirement: Public},
		{Pattern: "/auth/login", Requirement: Public},
		{Pattern: "/auth/federated-login", Requirement: Public},
		{Pattern: "/auth/reset-password", Requirement: Public},
		{Pattern: "/auth/verify-email/**", Requirement: Public},
		{Pattern: "/uploads/**", Requirement: Public},
		{Method: http.MethodGet, Pattern: "/health", Requirement: Public},
		{Method: http.MethodGet, Pattern: "/items", Requirement: Public},
		{Method: http.MethodGet, Pattern: "/items/*", Requirement: Public},
	}
}

// Default returns the application policy.
func Default() *Policy {
	p, err := New(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return p
}

// Evaluate returns the requirement for a request.
func (p *Policy) Evaluate(method, urlPath string) Requirement {
	if method == http.MethodOptions {
		return Public
	}

	clean := path.Clean("/" + urlPath)
	for _, r := range p.rules {
		if r.matches(method, clean) {
			return r.Requirement
		}
	}
	return Authenticated
}
