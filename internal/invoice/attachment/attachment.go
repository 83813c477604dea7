// Package attachment validates attachment names and derives storage keys.
// The bytes themselves live with the storage collaborator.
package attachment

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/invoiceflow/internal/config"
)

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateName returns the lower-cased extension of an acceptable name.
func ValidateName(name string, policy config.InvoicePolicy) (string, bool) {
	if name == "" || len(name) > policy.AttachmentMaxNameLength {
		return "", false
	}
	if !safeNamePattern.MatchString(name) || strings.HasPrefix(name, ".") || strings.Contains(name, "..") {
		return "", false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if !policy.AllowsExtension(ext) {
		return "", false
	}
	return ext, true
}

// Key builds invoices/<invoice id>/<ulid>-<slug>.<ext> for a validated name.
func Key(invoiceID snowflake.ID, name, ext string, now time.Time) string {
	base := slug.Make(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		base = "attachment"
	}
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return "invoices/" + invoiceID.String() + "/" + strings.ToLower(id.String()) + "-" + base + "." + ext
}
