// Package token implements the stateless verification token scheme: a
// colon-delimited field string carried as URL-safe base64 behind a fixed
// scheme prefix. The scheme is deliberately unsigned; the shared-secret gate
// sits in front of issuance, not consumption.
package token

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Prefix tags every token of this scheme. It doubles as a cheap
// "is this our token" check and leaves room for future scheme versions.
const Prefix = "u_"

const (
	delimiter  = ":"
	fieldCount = 6

	DefaultServiceLabel = "Verification"
	DefaultPlanLabel    = "Free"
)

var (
	ErrNotOurScheme       = errors.New("token: missing scheme prefix")
	ErrMalformed          = errors.New("token: malformed payload")
	ErrInsufficientFields = errors.New("token: insufficient fields")
)

// Token is the decoded form of a verification token. IssuedAtMS is
// authoritative for the expiry window; the remaining optional fields are
// presentation only.
type Token struct {
	SubjectID    string `json:"subject_id"`
	ServiceLabel string `json:"service_label"`
	IssuedAtMS   int64  `json:"issued_at_ms"`
	DisplayName  string `json:"display_name,omitempty"`
	PlanLabel    string `json:"plan_label,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
}

func (t Token) IssuedAt() time.Time { return time.UnixMilli(t.IssuedAtMS) }

var (
	toURLSafe   = strings.NewReplacer("+", "-", "/", "_")
	fromURLSafe = strings.NewReplacer("-", "+", "_", "/")
)

// Encode builds the delimited field string and wraps it in the URL-safe
// base64 representation. AvatarURL must stay the last field: it is the only
// one whose content can contain the delimiter.
func Encode(t Token) string {
	data := strings.Join([]string{
		t.SubjectID,
		t.ServiceLabel,
		strconv.FormatInt(t.IssuedAtMS, 10),
		t.DisplayName,
		t.PlanLabel,
		t.AvatarURL,
	}, delimiter)
	enc := base64.StdEncoding.EncodeToString([]byte(data))
	enc = toURLSafe.Replace(enc)
	enc = strings.TrimRight(enc, "=")
	return Prefix + enc
}

// Decode reverses Encode. An unparseable issue timestamp is replaced with now
// rather than rejected; the token then carries a fresh expiry window. Empty
// service and plan labels fall back to the scheme defaults.
func Decode(raw string, now time.Time) (Token, error) {
	if !strings.HasPrefix(raw, Prefix) {
		return Token{}, ErrNotOurScheme
	}
	payload := fromURLSafe.Replace(raw[len(Prefix):])
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Token{}, ErrMalformed
	}

	// The last field absorbs any extra delimiters, so an avatar URL with a
	// colon survives the split intact.
	parts := strings.SplitN(string(data), delimiter, fieldCount)
	if len(parts) < 3 {
		return Token{}, ErrInsufficientFields
	}

	t := Token{
		SubjectID:    parts[0],
		ServiceLabel: parts[1],
	}
	issued, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		issued = now.UnixMilli()
	}
	t.IssuedAtMS = issued
	if len(parts) > 3 {
		t.DisplayName = parts[3]
	}
	if len(parts) > 4 {
		t.PlanLabel = parts[4]
	}
	if len(parts) > 5 {
		t.AvatarURL = parts[5]
	}
	if t.ServiceLabel == "" {
		t.ServiceLabel = DefaultServiceLabel
	}
	if t.PlanLabel == "" {
		t.PlanLabel = DefaultPlanLabel
	}
	return t, nil
}
