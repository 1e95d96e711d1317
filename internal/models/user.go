// Package models defines the core domain models for the application.
// These models represent the data structures used throughout the system
// for signed-in users, their usage counters and their chat transcripts.
//
// All models include JSON struct tags for API serialization. Internal-only
// fields are marked with `json:"-"`.
package models

import "time"

// UserIdentity represents a user signed in via Google OAuth. One is
// materialized per successful callback and kept in the process-wide
// identity table for the lifetime of the web session.
//
// JSON example:
//
//	{
//	  "id": "112233445566778899",
//	  "email": "user@example.com",
//	  "name": "Jane Doe",
//	  "picture": "https://lh3.googleusercontent.com/...",
//	  "is_admin": false,
//	  "usage": {"request_count": 1, "token_count": 42}
//	}
type UserIdentity struct {
	ID       string      `json:"id"`       // Google account ID
	Email    string      `json:"email"`    // Verified email from Google
	Name     string      `json:"name"`     // Display name from Google profile
	Picture  string      `json:"picture"`  // Profile picture URL
	IsAdmin  bool        `json:"is_admin"` // Exempt from demo limits
	Usage    UsageRecord `json:"usage"`    // Snapshot, refreshed on read
	Device   string      `json:"device,omitempty"`
	LoginIP  string      `json:"-"`
	LoginAt  time.Time   `json:"login_at"`
}

// UsageRecord holds the per-user demo counters. Counters only grow until
// process restart.
type UsageRecord struct {
	RequestCount int `json:"request_count"`
	TokenCount   int `json:"token_count"`
}

// GoogleUserInfo represents the user information returned by Google's userinfo endpoint.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// UsageResponse is the body of GET /api/usage.
type UsageResponse struct {
	IsAdmin bool        `json:"is_admin"`
	Usage   UsageDetail `json:"usage"`
}

// UsageDetail holds the counters. Admins see "Unlimited" in place of the
// counts and no limits.
type UsageDetail struct {
	RequestCount interface{} `json:"request_count"`
	TokenCount   interface{} `json:"token_count"`
	RequestLimit int         `json:"request_limit,omitempty"`
	TokenLimit   int         `json:"token_limit,omitempty"`
	LimitReached bool        `json:"limit_reached"`
}
