// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file models services and their resources.
//
// Why model the session binding on the resource?
//
// Whether a request needs a session is a property of the route, not of the
// service. A login resource creates one, a profile resource only reads an
// existing one and a health resource never touches sessions at all. Keeping the
// mode per resource lets the HTTP host call the session dispatcher with the
// right `create` flag for each request.
package model

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// SessionMode declares how a resource binds requests to sessions.
type SessionMode string

const (
	// SessionNone never resolves a session.
	SessionNone SessionMode = "none"
	// SessionExisting resolves a session only when the client presents one.
	SessionExisting SessionMode = "existing"
	// SessionCreate resolves the client's session or creates a new one.
	SessionCreate SessionMode = "create"
)

// ParseSessionMode converts the HCL keyword into a SessionMode. The empty
// string selects SessionNone.
func ParseSessionMode(s string) (SessionMode, error) {
	switch SessionMode(s) {
	case "", SessionNone:
		return SessionNone, nil
	case SessionExisting, SessionCreate:
		return SessionMode(s), nil
	default:
		return "", fmt.Errorf("unknown session mode %q, expected one of none, existing, create", s)
	}
}

// Service groups resources under a common base path.
type Service struct {
	Name      string
	BasePath  string
	Resources []*Resource
	DeclRange hcl.Range
}

// Resource is a single HTTP route of a service.
type Resource struct {
	Name string
	// Method is the upper-cased HTTP method. Empty matches any method.
	Method string
	// Path is relative to the service base path.
	Path    string
	Session SessionMode

	SetSession hcl.Expression
	Status     hcl.Expression
	Body       hcl.Expression
	Invalidate hcl.Expression

	DeclRange hcl.Range
}

// Expressions returns every expression of the resource that was written in
// the source.
func (r *Resource) Expressions() []hcl.Expression {
	var exprs []hcl.Expression
	for _, e := range []hcl.Expression{r.SetSession, r.Status, r.Body, r.Invalidate} {
		if IsDefined(e) {
			exprs = append(exprs, e)
		}
	}
	return exprs
}

// Route returns the absolute path the resource is served on.
func (s *Service) Route(r *Resource) string {
	return JoinPath(s.BasePath, r.Path)
}

// MatchesMethod reports whether the resource serves the given HTTP method.
func (r *Resource) MatchesMethod(method string) bool {
	if r.Method == "" {
		return true
	}
	if r.Method == method {
		return true
	}
	return r.Method == http.MethodGet && method == http.MethodHead
}

// JoinPath joins a base path and a resource path into a clean absolute path.
func JoinPath(base, p string) string {
	joined := path.Join("/", base, p)
	if strings.HasSuffix(p, "/") && joined != "/" {
		joined += "/"
	}
	return joined
}
