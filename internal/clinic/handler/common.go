package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// scopeFrom returns the scope put in the context by the tenancy middleware.
func scopeFrom(r *http.Request) (tenant.Scope, error) {
	scope, err := tenant.ScopeFromContext(r.Context())
	if err != nil {
		return tenant.Scope{}, errors.Forbidden("no clinic context")
	}
	return scope, nil
}

// pathID returns the {id} URL parameter. Ids are UUIDs; anything else cannot
// exist and is reported as such.
func pathID(r *http.Request, resource string) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.NotFound(resource)
	}
	return id, nil
}

// listOptions reads page, per_page and the allowed equality filters from the
// query string. Filters ending in _id must be UUIDs.
func listOptions(r *http.Request, filters ...string) (guard.ListOptions, error) {
	q := r.URL.Query()
	opts := guard.ListOptions{Page: 1, PerPage: 20}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		opts.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		opts.PerPage = v
	}
	if opts.PerPage > 100 {
		opts.PerPage = 100
	}

	for _, key := range filters {
		v := q.Get(key)
		if v == "" {
			continue
		}
		if strings.HasSuffix(key, "_id") {
			if _, err := uuid.Parse(v); err != nil {
				return opts, errors.BadRequest("invalid " + key)
			}
		}
		if opts.Filters == nil {
			opts.Filters = map[string]any{}
		}
		opts.Filters[key] = v
	}
	return opts, nil
}
