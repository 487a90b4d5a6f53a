package query

import (
	stderrors "errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
)

// Validation codes returned by Parse
const (
	ErrCodeInvalidPage      = "INVALID_PAGE_PARAMETER"
	ErrCodeInvalidSize      = "INVALID_SIZE_PARAMETER"
	ErrCodeInvalidSortField = "INVALID_SORT_FIELD"
	ErrCodeInvalidSortOrder = "INVALID_SORT_ORDER"
	ErrCodeInvalidQuery     = "INVALID_QUERY_PARAMETER"
	ErrCodeInvalidFlag      = "INVALID_FLAG_PARAMETER"
	ErrCodeInvalidFilter    = "INVALID_FILTER_PARAMETER"
)

// MaxPage keeps Offset from overflowing
const MaxPage = math.MaxInt32

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is one ORDER BY term
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// String renders the term in query-string form, "-" marking descending.
func (s Sort) String() string {
	if s.Direction == Desc {
		return "-" + s.Field
	}
	return s.Field
}

// SQL renders the term for an ORDER BY clause.
func (s Sort) SQL() string {
	if s.Direction == Desc {
		return s.Field + " DESC"
	}
	return s.Field
}

// Pagination is a 1-based page number and a page size
type Pagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Offset returns the number of rows to skip
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

// Limit returns the number of rows to fetch
func (p Pagination) Limit() int {
	return p.Size
}

// Params is the normalised result of Parse
type Params struct {
	Pagination
	Sort         []Sort            `json:"sort,omitempty"`
	Query        string            `json:"q,omitempty"`
	Filters      map[string]string `json:"filters,omitempty"`
	IncludeTotal bool              `json:"include_total"`
}

// ParseRequest parses the query string of r
func ParseRequest(r *http.Request, opts Options) (*Params, error) {
	return Parse(r.URL.Query(), opts)
}

// Parse validates and normalises list parameters. Parameters are checked in
// the order page, size, sort, order, q, include_total, filters; the first
// invalid one is reported as a validation error.
func Parse(values url.Values, opts Options) (*Params, error) {
	opts = opts.normalize()
	params := &Params{}

	page, err := parsePage(values.Get(ParamPage), opts.Policy)
	if err != nil {
		return nil, err
	}
	params.Page = page

	size, err := parseSize(values.Get(ParamSize), opts)
	if err != nil {
		return nil, err
	}
	params.Size = size

	tokens, err := parseSortFields(values.Get(ParamSort), opts)
	if err != nil {
		return nil, err
	}

	order, err := parseDirection(values.Get(ParamOrder))
	if err != nil {
		return nil, err
	}
	params.Sort = buildSort(tokens, order, opts.DefaultSort)

	if raw := values.Get(ParamQuery); raw != "" {
		q, err := CleanText(raw, opts.MaxQueryLength)
		if err != nil {
			return nil, pkgerrors.NewFieldValidationError(ParamQuery, ErrCodeInvalidQuery,
				fmt.Sprintf("Invalid q parameter: %v", err))
		}
		params.Query = q
	}

	includeTotal, err := ParseBool(values, ParamIncludeTotal)
	if err != nil {
		return nil, err
	}
	params.IncludeTotal = includeTotal != nil && *includeTotal

	for _, key := range opts.FilterKeys {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		v, err := CleanText(raw, opts.MaxQueryLength)
		if err != nil {
			return nil, pkgerrors.NewFieldValidationError(key, ErrCodeInvalidFilter,
				fmt.Sprintf("Invalid %s parameter: %v", key, err))
		}
		if params.Filters == nil {
			params.Filters = make(map[string]string)
		}
		params.Filters[key] = v
	}

	return params, nil
}

func parsePage(raw string, policy Policy) (int, error) {
	if raw == "" {
		return DefaultPage, nil
	}

	page, err := parseInt(raw)
	if err != nil {
		return 0, pageError(raw)
	}

	if page >= 1 && page <= MaxPage {
		return page, nil
	}
	if policy == PolicyReject {
		return 0, pageError(raw)
	}
	if page < 1 {
		return 1, nil
	}
	return MaxPage, nil
}

// parseInt saturates integers that overflow int so the range checks apply
// to them like any other out-of-range value.
func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if stderrors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return math.MinInt, nil
		}
		return math.MaxInt, nil
	}
	return n, err
}

func pageError(raw string) error {
	err := pkgerrors.NewValidationError(ErrCodeInvalidPage, "Invalid page parameter. Must be an integer >= 1")
	return err.WithField(ParamPage, pkgerrors.FieldError{
		Code:   "range",
		Params: map[string]any{"value": raw, "min": 1},
	})
}

func parseSize(raw string, opts Options) (int, error) {
	if raw == "" {
		return opts.DefaultSize, nil
	}

	size, err := parseInt(raw)
	if err != nil {
		return 0, sizeError(raw, opts.MaxSize)
	}

	if size >= 1 && size <= opts.MaxSize {
		return size, nil
	}
	if opts.Policy == PolicyReject {
		return 0, sizeError(raw, opts.MaxSize)
	}
	if size < 1 {
		return 1, nil
	}
	return opts.MaxSize, nil
}

func sizeError(raw string, max int) error {
	err := pkgerrors.NewValidationError(ErrCodeInvalidSize,
		fmt.Sprintf("Invalid size parameter. Must be between 1 and %d", max))
	return err.WithField(ParamSize, pkgerrors.FieldError{
		Code:   "range",
		Params: map[string]any{"value": raw, "min": 1, "max": max},
	})
}

type sortToken struct {
	field string
	desc  bool
}

func parseSortFields(raw string, opts Options) ([]sortToken, error) {
	var tokens []sortToken
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		tok := sortToken{field: part}
		if strings.HasPrefix(part, "-") {
			tok = sortToken{field: strings.TrimPrefix(part, "-"), desc: true}
		}

		if !opts.sortAllowed(tok.field) {
			err := pkgerrors.NewValidationError(ErrCodeInvalidSortField,
				fmt.Sprintf("Invalid sort parameter. Must be one of: %s", strings.Join(opts.AllowedSort, ", ")))
			return nil, err.WithField(ParamSort, pkgerrors.FieldError{
				Code:   "allowed",
				Params: map[string]any{"value": tok.field, "allowed": opts.AllowedSort},
			})
		}

		if seen[tok.field] {
			continue
		}
		seen[tok.field] = true
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

// parseDirection returns "" when raw is empty
func parseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}

	err := pkgerrors.NewValidationError(ErrCodeInvalidSortOrder, "Invalid order parameter. Must be 'asc' or 'desc'")
	return "", err.WithField(ParamOrder, pkgerrors.FieldError{
		Code:   "allowed",
		Params: map[string]any{"value": raw},
	})
}

func buildSort(tokens []sortToken, order Direction, defaults []Sort) []Sort {
	if len(tokens) == 0 {
		if len(defaults) == 0 {
			return nil
		}
		out := make([]Sort, len(defaults))
		copy(out, defaults)
		if order != "" {
			for i := range out {
				out[i].Direction = order
			}
		}
		return out
	}

	if order == "" {
		order = Asc
	}
	out := make([]Sort, 0, len(tokens))
	for _, tok := range tokens {
		dir := order
		if tok.desc {
			dir = Desc
		}
		out = append(out, Sort{Field: tok.field, Direction: dir})
	}
	return out
}

// ParseBool reads an optional boolean flag. A missing key yields nil.
func ParseBool(values url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, pkgerrors.NewFieldValidationError(key, ErrCodeInvalidFlag,
			fmt.Sprintf("Invalid %s parameter. Must be true or false", key))
	}
	return &v, nil
}

// OrderBy renders the sort terms as ORDER BY arguments, e.g. "name, age DESC".
// Fields were checked against the allow-list by Parse. With no sort terms
// defaultClause is returned.
func (p *Params) OrderBy(defaultClause string) string {
	if len(p.Sort) == 0 {
		return defaultClause
	}
	parts := make([]string, len(p.Sort))
	for i, s := range p.Sort {
		parts[i] = s.SQL()
	}
	return strings.Join(parts, ", ")
}

// Values converts the parameters back into query-string form.
func (p *Params) Values() url.Values {
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(p.Page))
	v.Set(ParamSize, strconv.Itoa(p.Size))

	if len(p.Sort) > 0 {
		parts := make([]string, len(p.Sort))
		for i, s := range p.Sort {
			parts[i] = s.String()
		}
		v.Set(ParamSort, strings.Join(parts, ","))
	}
	if p.Query != "" {
		v.Set(ParamQuery, p.Query)
	}
	if p.IncludeTotal {
		v.Set(ParamIncludeTotal, "true")
	}
	for key, val := range p.Filters {
		v.Set(key, val)
	}
	return v
}

// Encode returns the URL-encoded query string
func (p *Params) Encode() string {
	return p.Values().Encode()
}

// NextPage returns a copy pointing at the following page
func (p *Params) NextPage() *Params {
	next := *p
	next.Sort = append([]Sort(nil), p.Sort...)
	if p.Filters != nil {
		next.Filters = make(map[string]string, len(p.Filters))
		for k, v := range p.Filters {
			next.Filters[k] = v
		}
	}
	if next.Page < MaxPage {
		next.Page++
	}
	return &next
}
