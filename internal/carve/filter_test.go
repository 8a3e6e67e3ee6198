package carve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterOptionsNormalisation(t *testing.T) {
	f := NewFilterOptions([]string{"JPG", ".pdf", " docx ", ""}, "", 0)
	assert.Equal(t, []string{".jpg", ".pdf", ".docx"}, f.Extensions)
}

func TestFilterOptionsAccept(t *testing.T) {
	tests := []struct {
		name   string
		filter *FilterOptions
		file   string
		size   int64
		want   bool
	}{
		{"empty filter accepts all", NewFilterOptions(nil, "", 0), "anything.bin", 1 << 40, true},
		{"extension match", NewFilterOptions([]string{"jpg"}, "", 0), "carved_x.jpg", 10, true},
		{"extension mismatch", NewFilterOptions([]string{"jpg"}, "", 0), "carved_x.png", 10, false},
		{"extension case-insensitive", NewFilterOptions([]string{"jpg"}, "", 0), "PHOTO.JPG", 10, true},
		{"substring match", NewFilterOptions(nil, "Report", 0), "annual_report.pdf", 10, true},
		{"substring mismatch", NewFilterOptions(nil, "invoice", 0), "annual_report.pdf", 10, false},
		{"size within cap", NewFilterOptions(nil, "", 100), "x.jpg", 100, true},
		{"size over cap", NewFilterOptions(nil, "", 100), "x.jpg", 101, false},
		{"all options AND together", NewFilterOptions([]string{"jpg"}, "carved", 1000), "carved_1.jpg", 500, true},
		{"AND fails on one option", NewFilterOptions([]string{"jpg"}, "carved", 1000), "carved_1.jpg", 5000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Accept(tt.file, tt.size))
		})
	}
}

func TestFilterOptionsEmpty(t *testing.T) {
	assert.True(t, NewFilterOptions(nil, "", 0).Empty())
	assert.False(t, NewFilterOptions([]string{"jpg"}, "", 0).Empty())
	assert.False(t, NewFilterOptions(nil, "x", 0).Empty())
	assert.False(t, NewFilterOptions(nil, "", 1).Empty())
}
