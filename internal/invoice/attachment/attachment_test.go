package attachment

import (
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	policy := config.DefaultInvoicePolicy()

	ext, ok := ValidateName("Receipt_2026-01.PDF", policy)
	require.True(t, ok)
	assert.Equal(t, "pdf", ext)

	rejected := []string{
		"",
		"../../etc/passwd",
		"report..pdf",
		".hidden.pdf",
		"invoice.exe",
		"noext",
		"name with space.pdf",
		"a/b.pdf",
		strings.Repeat("a", policy.AttachmentMaxNameLength) + ".pdf",
	}
	for _, name := range rejected {
		_, ok := ValidateName(name, policy)
		assert.False(t, ok, name)
	}
}

func TestKey(t *testing.T) {
	key := Key(42, "Q1-Report.pdf", "pdf", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(key, "invoices/42/"), key)
	assert.True(t, strings.HasSuffix(key, "-q1-report.pdf"), key)
	assert.NotContains(t, key, "..")
}
