package internal

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/store"
)

// maxListLimit caps an explicit limit. Without one the list is complete.
const maxListLimit = 200

// parseListParams parses status, search (or q), sort, limit and offset from
// the request. Defaults: no limit, offset=0, newest first.
// The status value is passed through unchecked; the service rejects
// values outside the enumeration.
func parseListParams(r *http.Request) models.ProjectQuery {
	values := r.URL.Query()

	limit := 0
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > maxListLimit {
				v = maxListLimit
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	search := strings.TrimSpace(values.Get("search"))
	if search == "" {
		search = strings.TrimSpace(values.Get("q"))
	}

	return models.ProjectQuery{
		Status: models.Status(strings.TrimSpace(values.Get("status"))),
		Search: search,
		Sort:   parseSort(values.Get("sort"), allowedSort),
		Limit:  limit,
		Offset: offset,
	}
}

// allowedSort accepts both the JSON field names and their snake_case forms.
var allowedSort = sortAliases(store.SortKeys())

func sortAliases(keys []string) map[string]string {
	out := make(map[string]string, 2*len(keys))
	for _, k := range keys {
		out[k] = k
		out[snakeCase(k)] = k
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSort turns a comma-separated sort parameter into sort fields using a
// whitelist of allowed keys. Prefix a key with '-' for descending order.
// Unknown keys are dropped; an empty result means the store default.
func parseSort(sortParam string, allowed map[string]string) []models.SortField {
	if strings.TrimSpace(sortParam) == "" {
		return nil
	}

	parts := strings.Split(sortParam, ",")
	fields := make([]models.SortField, 0, len(parts))
	for _, raw := range parts {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(s, "-") {
			desc = true
			s = strings.TrimPrefix(s, "-")
		}
		field, ok := allowed[s]
		if !ok {
			continue
		}
		fields = append(fields, models.SortField{Field: field, Desc: desc})
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
