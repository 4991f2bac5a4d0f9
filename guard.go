package accounts

import (
	"strings"
	"sync"
)

// GuardState is the authorization state of the current page session.
type GuardState string

const (
	GuardUnauthenticated GuardState = "unauthenticated"
	GuardResolving       GuardState = "authenticated_unresolved"
	GuardAuthorized      GuardState = "authorized"
	GuardDenied          GuardState = "denied"
)

const (
	revokedTitle   = "Account Disabled"
	revokedMessage = "Your access has been revoked. Please contact an administrator."
	deniedTitle    = "Access Denied"
)

var permissionMessages = map[PermissionKey]string{
	PermissionManageEvents:     "You don't have permission to manage events.",
	PermissionCreateEvents:     "You don't have permission to create events.",
	PermissionViewAdminTrail:   "You don't have permission to view the admin trail.",
	PermissionManageRelocation: "You don't have permission to manage relocation data.",
	PermissionManageAccounts:   "Only administrators can manage account records.",
}

const defaultDeniedMessage = "You do not have permission to view this page."

// PermissionMessage returns the user facing denial message for key.
func PermissionMessage(key PermissionKey) string {
	if msg, ok := permissionMessages[key]; ok {
		return msg
	}
	return defaultDeniedMessage
}

// Decision is the outcome of a guard evaluation.
type Decision struct {
	State    GuardState    `json:"state"`
	Allowed  bool          `json:"allowed"`
	Required PermissionKey `json:"required,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
	Title    string        `json:"title,omitempty"`
	Message  string        `json:"message,omitempty"`
	// Notify is set the first time a denial or revocation is reported so the
	// UI shows a single notice per session.
	Notify  bool `json:"notify"`
	SignOut bool `json:"signOut"`
}

// RequirementFor returns the requirement whose path the route ends with.
// Matching is case insensitive.
func RequirementFor(routes []RouteRequirement, path string) (RouteRequirement, bool) {
	lower := strings.ToLower(path)
	for _, route := range routes {
		if route.Path == "" {
			continue
		}
		if strings.HasSuffix(lower, strings.ToLower(route.Path)) ||
			strings.HasSuffix(strings.TrimSuffix(lower, ".html"), strings.ToLower(route.Path)) {
			return route, true
		}
	}
	return RouteRequirement{}, false
}

// PageGuard gates routes on resolved permissions for one page session.
type PageGuard struct {
	mu             sync.Mutex
	state          GuardState
	routes         []RouteRequirement
	destinations   []string
	signInPath     string
	fallback       string
	deniedNotified bool
	revokeNotified bool
}

// NewPageGuard builds a guard from the route table in cfg.
func NewPageGuard(cfg Config) *PageGuard {
	cfg = cfg.normalized()
	return &PageGuard{
		state:        GuardUnauthenticated,
		routes:       cfg.Routes,
		destinations: cfg.RedirectDestinations,
		signInPath:   cfg.SignInPath,
		fallback:     cfg.FallbackPath,
	}
}

// State returns the current state.
func (g *PageGuard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SignedIn moves an unauthenticated guard to resolving.
func (g *PageGuard) SignedIn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == GuardUnauthenticated {
		g.state = GuardResolving
	}
}

// SignedOut resets the guard to unauthenticated.
func (g *PageGuard) SignedOut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GuardUnauthenticated
	g.deniedNotified = false
}

// Evaluate decides whether path may be shown with perms.
func (g *PageGuard) Evaluate(path string, perms Permissions) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == GuardUnauthenticated {
		return Decision{State: g.state, Redirect: g.signInPath}
	}

	requirement, gated := RequirementFor(g.routes, path)
	if !gated || perms.Allows(requirement.Permission) {
		g.state = GuardAuthorized
		return Decision{State: g.state, Allowed: true, Required: requirement.Permission}
	}

	g.state = GuardDenied
	decision := Decision{
		State:    g.state,
		Required: requirement.Permission,
		Title:    deniedTitle,
		Message:  PermissionMessage(requirement.Permission),
	}
	// one notice and one redirect per sign in
	if !g.deniedNotified {
		g.deniedNotified = true
		decision.Notify = true
		decision.Redirect = g.redirectTarget(path)
	}
	return decision
}

// Revoke handles a principal whose record is missing, disabled or deleted.
// Only the first revocation of a guard carries the notice, the sign out and
// the redirect. Later calls report the state alone.
func (g *PageGuard) Revoke() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = GuardUnauthenticated
	decision := Decision{
		State:   g.state,
		Title:   revokedTitle,
		Message: revokedMessage,
	}
	if !g.revokeNotified {
		g.revokeNotified = true
		decision.Notify = true
		decision.SignOut = true
		decision.Redirect = g.signInPath
	}
	return decision
}

// redirectTarget picks the first destination that is not the current page.
func (g *PageGuard) redirectTarget(path string) string {
	for _, dest := range g.destinations {
		if !strings.HasSuffix(path, dest) {
			return dest
		}
	}
	return g.fallback
}
