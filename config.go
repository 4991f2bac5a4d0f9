package accounts

import "strings"

// RouteRequirement binds a route suffix to the permission it needs.
type RouteRequirement struct {
	Path       string        `json:"path"`
	Permission PermissionKey `json:"permission"`
}

// Config holds the policy knobs of the account core.
type Config struct {
	// Domain is the required email suffix, "@" included.
	Domain               string
	MaxAdminAccounts     int
	MinPasswordLength    int
	MaxPasswordLength    int
	MaxEmailLength       int
	MinIdentityIDLength  int
	Routes               []RouteRequirement
	RedirectDestinations []string
	SignInPath           string
	FallbackPath         string
}

// DefaultRoutes is the route table of the console.
var DefaultRoutes = []RouteRequirement{
	{Path: "manage_events", Permission: PermissionManageEvents},
	{Path: "create_events", Permission: PermissionCreateEvents},
	{Path: "edit_events", Permission: PermissionManageEvents},
	{Path: "admin_trail", Permission: PermissionViewAdminTrail},
	{Path: "set_admin_role", Permission: PermissionManageAccounts},
	{Path: "account_management", Permission: PermissionManageAccounts},
	{Path: "/relocation/location.html", Permission: PermissionManageRelocation},
	{Path: "/relocation/relocation.html", Permission: PermissionManageRelocation},
}

// DefaultConfig returns the console policy.
func DefaultConfig() Config {
	return Config{
		Domain:              "@pcu.edu.ph",
		MaxAdminAccounts:    1,
		MinPasswordLength:   6,
		MaxPasswordLength:   128,
		MaxEmailLength:      254,
		MinIdentityIDLength: 10,
		Routes:              append([]RouteRequirement(nil), DefaultRoutes...),
		RedirectDestinations: []string{
			"/pages/profile.html",
			"/pages/manage_events.html",
			"/index.html",
		},
		SignInPath:   "/index.html",
		FallbackPath: "/index.html",
	}
}

// normalized fills zero values from DefaultConfig.
func (c Config) normalized() Config {
	def := DefaultConfig()
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
	if c.Domain == "" {
		c.Domain = def.Domain
	}
	if !strings.HasPrefix(c.Domain, "@") {
		c.Domain = "@" + c.Domain
	}
	if c.MaxAdminAccounts <= 0 {
		c.MaxAdminAccounts = def.MaxAdminAccounts
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = def.MinPasswordLength
	}
	if c.MaxPasswordLength <= 0 {
		c.MaxPasswordLength = def.MaxPasswordLength
	}
	if c.MaxEmailLength <= 0 {
		c.MaxEmailLength = def.MaxEmailLength
	}
	if c.MinIdentityIDLength <= 0 {
		c.MinIdentityIDLength = def.MinIdentityIDLength
	}
	if len(c.Routes) == 0 {
		c.Routes = def.Routes
	}
	if len(c.RedirectDestinations) == 0 {
		c.RedirectDestinations = def.RedirectDestinations
	}
	if c.SignInPath == "" {
		c.SignInPath = def.SignInPath
	}
	if c.FallbackPath == "" {
		c.FallbackPath = def.FallbackPath
	}
	return c
}
