package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullAddress(t *testing.T) {
	cases := []struct {
		name    string
		company Company
		want    string
	}{
		{"all parts", Company{Address: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"}, "1 Main St, Springfield, IL, 62701, US"},
		{"gaps", Company{Address: "1 Main St", State: "  ", Country: "US"}, "1 Main St, US"},
		{"empty", Company{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FullAddress(tc.company))
		})
	}
}
