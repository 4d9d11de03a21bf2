package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter bounded by [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	return parseQuery(r, key, defaultVal, func(raw string) (int, error) {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, queryError(key, "query parameter must be numeric", nil)
		}
		if value < min || value > max {
			return 0, queryError(key, "query parameter out of range", map[string]any{"min": min, "max": max})
		}
		return value, nil
	})
}

func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	return parseQuery(r, key, defaultVal, func(raw string) (bool, error) {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return false, queryError(key, "query parameter must be true or false", nil)
		}
		return value, nil
	})
}

func parseQuery[T any](r *http.Request, key string, defaultVal T, parse func(string) (T, error)) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	return parse(raw)
}

func queryError(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}
