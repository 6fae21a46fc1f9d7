package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// sortClause resolves a whitelisted sort column and normalised order.
func sortClause(allowed map[string]string, sortBy, sortOrder, fallback string) (string, string) {
	column, ok := allowed[sortBy]
	if !ok || column == "" {
		column = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column, order
}

// pageClause clamps pagination inputs and returns limit and offset.
func pageClause(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}

// parseSequence extracts the numeric suffix from a year-prefixed document number.
func parseSequence(number, prefix string) (int, error) {
	suffix := strings.TrimPrefix(number, prefix)
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("malformed document number %q: %w", number, err)
	}
	return seq, nil
}
