package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RequestContext carries the client attributes captured at session creation
// and checked on each validation.
type RequestContext struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Location       string
}

// Fingerprint is a best-effort device identifier derived from request
// headers. It is not a security boundary, only an anomaly signal.
func (r RequestContext) Fingerprint() string {
	sum := sha256.Sum256([]byte(r.UserAgent + "|" + r.AcceptLanguage + "|" + r.AcceptEncoding))
	return hex.EncodeToString(sum[:])
}

// Data is the full per-session record.
type Data struct {
	ID           string    `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"user_agent"`
	Fingerprint  string    `json:"fingerprint"`
	Location     string    `json:"location,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Metadata is the slim projection used for session listing.
type Metadata struct {
	ID           string    `json:"id"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"user_agent"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func (d Data) Metadata() Metadata {
	return Metadata{
		ID:           d.ID,
		IP:           d.IP,
		UserAgent:    d.UserAgent,
		Location:     d.Location,
		CreatedAt:    d.CreatedAt,
		LastActivity: d.LastActivity,
	}
}
