package util

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFileNameBytes bounds stored names; the extension is always kept.
const maxFileNameBytes = 200

var errInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens an uploaded name into a single safe path element.
// Any ".." path element is rejected; separators become "_" and control
// characters are dropped.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	for _, part := range strings.FieldsFunc(s, isSeparator) {
		if part == ".." {
			return "", errInvalidFileName
		}
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case isSeparator(r):
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "", errInvalidFileName
	}
	return truncateKeepExt(s, maxFileNameBytes), nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

func truncateKeepExt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	ext := filepath.Ext(s)
	if len(ext) >= limit {
		ext = ""
	}
	stem := s[:limit-len(ext)]
	for !utf8.ValidString(stem) {
		stem = stem[:len(stem)-1]
	}
	return stem + ext
}
