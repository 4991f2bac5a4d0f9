package accounts

import (
	"strings"
	"time"
)

// Severity ranks audit entries.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Category groups audit entries.
type Category string

const (
	CategoryAuthentication    Category = "AUTHENTICATION"
	CategoryAccountManagement Category = "ACCOUNT_MANAGEMENT"
	CategorySystem            Category = "SYSTEM"
)

// Audit actions written by the lifecycle manager and the session.
const (
	ActionBootstrapAdmin      = "BOOTSTRAP_ADMIN"
	ActionCreateAccount       = "CREATE_ACCOUNT"
	ActionLinkExistingAccount = "LINK_EXISTING_ACCOUNT"
	ActionUpdatePermissions   = "UPDATE_PERMISSIONS"
	ActionDisableAccount      = "DISABLE_ACCOUNT"
	ActionEnableAccount       = "ENABLE_ACCOUNT"
	ActionDeleteAccount       = "DELETE_ACCOUNT"
	ActionRegister            = "REGISTER"
	ActionLogin               = "LOGIN"
	ActionLogout              = "LOGOUT"
)

// EntityTypeUser is the entity type of every account related trail entry.
const EntityTypeUser = "user"

// Identity is what the identity provider knows about a signed in principal.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Actor returns the audit reference for the identity.
func (i Identity) Actor() ActorRef {
	return ActorRef{ID: i.ID, Email: i.Email, Name: i.DisplayName, Type: "user"}
}

// ActorRef identifies who performed an action.
type ActorRef struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type,omitempty"`
}

// DisplayName falls back to the email when no name is known.
func (a ActorRef) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// AccountRecord is the directory profile stored at users/{id}.
type AccountRecord struct {
	ID                 string      `json:"id"`
	Email              string      `json:"email"`
	Role               Role        `json:"role"`
	Permissions        Permissions `json:"permissions"`
	IsDisabled         bool        `json:"isDisabled"`
	DeletedAt          *time.Time  `json:"deletedAt,omitempty"`
	EmailVerified      *bool       `json:"emailVerified"`
	BootstrapAdmin     bool        `json:"bootstrapAdmin,omitempty"`
	LinkedFromAuthOnly bool        `json:"linkedFromAuthOnly,omitempty"`
	CreatedBy          string      `json:"createdBy,omitempty"`
	CreatedAt          *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time  `json:"updatedAt,omitempty"`
	LastLoginAt        *time.Time  `json:"lastLoginAt,omitempty"`
}

// IsAdmin reports whether the record carries the admin role.
func (r AccountRecord) IsAdmin() bool {
	return r.Role.IsAdmin()
}

// IsDeleted reports a soft deletion marker.
func (r AccountRecord) IsDeleted() bool {
	return r.DeletedAt != nil
}

// IsActive is true for records that may sign in.
func (r AccountRecord) IsActive() bool {
	return !r.IsDisabled && !r.IsDeleted()
}

// HoldsAdminSeat reports whether the record counts against the admin cap.
// Disabled admins keep their seat; soft deleted ones release it.
func (r AccountRecord) HoldsAdminSeat() bool {
	return r.IsAdmin() && !r.IsDeleted()
}

// AccountFromDocument decodes a stored record. Decoding is lenient because
// older records carry partial shapes.
func AccountFromDocument(id string, doc Document) AccountRecord {
	record := AccountRecord{
		ID:                 id,
		Email:              asString(doc["email"]),
		Role:               NormalizeRole(asString(doc["role"])),
		Permissions:        Permissions(CloneDocument(asMap(doc["permissions"]))),
		IsDisabled:         truthy(doc["isDisabled"]),
		DeletedAt:          parseTimestamp(doc["deletedAt"]),
		BootstrapAdmin:     truthy(doc["bootstrapAdmin"]),
		LinkedFromAuthOnly: truthy(doc["linkedFromAuthOnly"]),
		CreatedBy:          asString(doc["createdBy"]),
		CreatedAt:          parseTimestamp(doc["createdAt"]),
		UpdatedAt:          parseTimestamp(doc["updatedAt"]),
		LastLoginAt:        parseTimestamp(doc["lastLoginAt"]),
	}
	if raw, ok := doc["emailVerified"]; ok && raw != nil {
		verified := truthy(raw)
		record.EmailVerified = &verified
	}
	if record.Permissions == nil {
		record.Permissions = Permissions{}
	}
	return record
}

// ClientInfo describes where an audit entry was written from.
type ClientInfo struct {
	UserAgent string `json:"userAgent"`
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// AuditEntry is an immutable record under adminTrail/{id}.
type AuditEntry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Date       string         `json:"date"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	UserID     string         `json:"userId"`
	UserEmail  string         `json:"userEmail"`
	UserName   string         `json:"userName"`
	Severity   Severity       `json:"severity"`
	Category   Category       `json:"category"`
	Details    map[string]any `json:"details"`
	ClientInfo ClientInfo     `json:"clientInfo"`
}

// Document encodes the entry in its stored shape.
func (e AuditEntry) Document() Document {
	var entityID any
	if e.EntityID != "" {
		entityID = e.EntityID
	}
	details := CloneDocument(e.Details)
	if details == nil {
		details = Document{}
	}
	return Document{
		"timestamp":  formatTimestamp(e.Timestamp),
		"date":       e.Date,
		"action":     e.Action,
		"entityType": e.EntityType,
		"entityId":   entityID,
		"userId":     e.UserID,
		"userEmail":  e.UserEmail,
		"userName":   e.UserName,
		"severity":   string(e.Severity),
		"category":   string(e.Category),
		"details":    details,
		"clientInfo": Document{
			"userAgent": e.ClientInfo.UserAgent,
			"url":       e.ClientInfo.URL,
			"sessionId": e.ClientInfo.SessionID,
		},
	}
}

// AuditEntryFromDocument decodes a stored entry.
func AuditEntryFromDocument(id string, doc Document) AuditEntry {
	entry := AuditEntry{
		ID:         id,
		Date:       asString(doc["date"]),
		Action:     asString(doc["action"]),
		EntityType: asString(doc["entityType"]),
		EntityID:   asString(doc["entityId"]),
		UserID:     asString(doc["userId"]),
		UserEmail:  asString(doc["userEmail"]),
		UserName:   asString(doc["userName"]),
		Severity:   Severity(strings.ToUpper(asString(doc["severity"]))),
		Category:   Category(strings.ToUpper(asString(doc["category"]))),
		Details:    CloneDocument(asMap(doc["details"])),
	}
	if ts := parseTimestamp(doc["timestamp"]); ts != nil {
		entry.Timestamp = *ts
	}
	if client := asMap(doc["clientInfo"]); client != nil {
		entry.ClientInfo = ClientInfo{
			UserAgent: asString(client["userAgent"]),
			URL:       asString(client["url"]),
			SessionID: asString(client["sessionId"]),
		}
	}
	if entry.Severity == "" {
		entry.Severity = SeverityMedium
	}
	if entry.Category == "" {
		entry.Category = CategorySystem
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	return entry
}

// DetailString returns a string detail or "".
func (e AuditEntry) DetailString(key string) string {
	if e.Details == nil {
		return ""
	}
	value, ok := e.Details[key].(string)
	if !ok {
		return ""
	}
	return value
}
