// Package pageranges resolves page-range expressions such as "1-3,5" or
// "4-2" into zero-based page indices.
package pageranges

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidToken = errors.New("invalid range token")
	ErrOutOfBounds  = errors.New("range out of bounds")
)

var tokenRe = regexp.MustCompile(`^\s*(\d+)\s*(?:-\s*(\d+)\s*)?$`)

// Parse returns the pages selected by spec for a document with numPages pages.
// An empty or whitespace-only spec selects every page in order. A descending
// range like "5-3" yields its pages in reverse. Duplicates are kept.
func Parse(spec string, numPages int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return All(numPages), nil
	}

	var pages []int
	for _, part := range strings.Split(spec, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m := tokenRe.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidToken, strings.TrimSpace(part))
		}

		start, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidToken, strings.TrimSpace(part))
		}
		end := start
		if m[2] != "" {
			if end, err = strconv.Atoi(m[2]); err != nil {
				return nil, fmt.Errorf("%w: '%s'", ErrInvalidToken, strings.TrimSpace(part))
			}
		}

		if start < 1 || end < 1 || start > numPages || end > numPages {
			return nil, fmt.Errorf("%w: '%s' (doc has %d pages)", ErrOutOfBounds, strings.TrimSpace(part), numPages)
		}

		if start <= end {
			for p := start; p <= end; p++ {
				pages = append(pages, p-1)
			}
		} else {
			for p := start; p >= end; p-- {
				pages = append(pages, p-1)
			}
		}
	}
	return pages, nil
}

// All returns 0..numPages-1.
func All(numPages int) []int {
	pages := make([]int, 0, max(numPages, 0))
	for i := 0; i < max(numPages, 0); i++ {
		pages = append(pages, i)
	}
	return pages
}
