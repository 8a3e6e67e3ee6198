package carve

import "strings"

// FilterOptions is the standard Filter: an extension whitelist, a
// case-insensitive name substring and a size cap. Unset options pass;
// when several are set, all must pass.
type FilterOptions struct {
	Extensions    []string
	NameSubstring string
	MaxSize       int64
}

// NewFilterOptions normalises raw extension tokens (lowercased, leading dot
// added when missing) into a ready-to-use filter.
func NewFilterOptions(extensions []string, nameSubstring string, maxSize int64) *FilterOptions {
	f := &FilterOptions{NameSubstring: nameSubstring, MaxSize: maxSize}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.Extensions = append(f.Extensions, ext)
	}
	return f
}

// Empty reports whether the filter accepts everything.
func (f *FilterOptions) Empty() bool {
	return len(f.Extensions) == 0 && f.NameSubstring == "" && f.MaxSize == 0
}

// Accept implements Filter.
func (f *FilterOptions) Accept(name string, size int64) bool {
	if len(f.Extensions) > 0 {
		lower := strings.ToLower(name)
		ok := false
		for _, ext := range f.Extensions {
			if strings.HasSuffix(lower, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.NameSubstring != "" &&
		!strings.Contains(strings.ToLower(name), strings.ToLower(f.NameSubstring)) {
		return false
	}
	if f.MaxSize > 0 && size > f.MaxSize {
		return false
	}
	return true
}
