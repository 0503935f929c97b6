// Package validator turns caller-supplied search parameters into clamped,
// typed search options. Unknown enum values and unparseable dates are
// rejected; malformed pagination is clamped rather than rejected.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	govalidator "github.com/go-playground/validator"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
)

const maxQueryLength = 1024

// FilterType is all, auto (narrow to the kind implied by the intent) or a
// document kind.
type FilterType string

const (
	FilterAll  FilterType = "all"
	FilterAuto FilterType = "auto"
)

// Options are validated search options.
type Options struct {
	SearchType            executor.SearchType `json:"searchType"`
	FilterType            FilterType          `json:"filterType"`
	SortBy                ranker.SortBy       `json:"sortBy"`
	MaxResults            int                 `json:"maxResults"`
	Offset                int                 `json:"offset"`
	Since                 time.Time           `json:"since,omitempty"`
	EnablePersonalization bool                `json:"enablePersonalization"`
}

// CacheKey is a canonical encoding of every option that changes results.
func (o Options) CacheKey() string {
	since := ""
	if !o.Since.IsZero() {
		since = o.Since.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("t=%s|f=%s|s=%s|n=%d|o=%d|since=%s|p=%t",
		o.SearchType, o.FilterType, o.SortBy, o.MaxResults, o.Offset, since, o.EnablePersonalization)
}

// Request holds raw parameters as received over HTTP or the CLI.
type Request struct {
	Query       string `validate:"max=1024"`
	SearchType  string `validate:"omitempty,oneof=text semantic hybrid"`
	FilterType  string `validate:"omitempty,oneof=all auto document task schedule conversation file"`
	SortBy      string `validate:"omitempty,oneof=relevance date"`
	MaxResults  string
	Offset      string
	Since       string
	Personalize string
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidQuery }

var validate = govalidator.New()

var fieldNames = map[string]string{
	"Query":      "q",
	"SearchType": "searchType",
	"FilterType": "filterType",
	"SortBy":     "sortBy",
}

var fieldMessages = map[string]string{
	"Query":      fmt.Sprintf("query must be at most %d characters", maxQueryLength),
	"SearchType": "must be one of text, semantic, hybrid",
	"FilterType": "must be all, auto or a document kind",
	"SortBy":     "must be relevance or date",
}

// Parse validates req and returns clamped options. The query text itself is
// validated by the enhancer.
func Parse(req Request, limits config.SearchConfig) (Options, error) {
	errs := make(map[string]string)

	if err := validate.Struct(req); err != nil {
		var verrs govalidator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Options{}, fmt.Errorf("validating search request: %w", err)
		}
		for _, fe := range verrs {
			errs[fieldNames[fe.Field()]] = fieldMessages[fe.Field()]
		}
	}

	var since time.Time
	if s := strings.TrimSpace(req.Since); s != "" {
		t, err := dateparse.ParseAny(s)
		if err != nil {
			errs["since"] = fmt.Sprintf("unrecognised date %q", s)
		}
		since = t
	}
	if len(errs) > 0 {
		return Options{}, &ValidationError{Fields: errs}
	}

	personalize, _ := strconv.ParseBool(req.Personalize)
	opts := Options{
		SearchType:            executor.SearchType(req.SearchType),
		FilterType:            FilterType(req.FilterType),
		SortBy:                ranker.SortBy(req.SortBy),
		MaxResults:            atoiOr(req.MaxResults, 0),
		Offset:                atoiOr(req.Offset, 0),
		Since:                 since,
		EnablePersonalization: personalize,
	}
	return Clamp(opts, limits), nil
}

// Clamp fills defaults and pulls pagination into range. Unknown enum values
// fall back to their defaults.
func Clamp(o Options, limits config.SearchConfig) Options {
	if st, ok := executor.ParseSearchType(string(o.SearchType)); ok {
		o.SearchType = st
	} else {
		o.SearchType = executor.SearchHybrid
	}
	if by, ok := ranker.ParseSortBy(string(o.SortBy)); ok {
		o.SortBy = by
	} else {
		o.SortBy = ranker.SortRelevance
	}
	if _, ok := o.FilterType.Kind(); !ok && o.FilterType != FilterAuto {
		o.FilterType = FilterAll
	}

	switch {
	case o.MaxResults <= 0:
		o.MaxResults = limits.DefaultLimit
	case o.MaxResults > limits.MaxResults:
		o.MaxResults = limits.MaxResults
	}
	o.Offset = max(0, o.Offset)
	return o
}

// Kind returns the explicit document kind the filter names, if any.
func (f FilterType) Kind() (document.Kind, bool) {
	return document.ParseKind(string(f))
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
