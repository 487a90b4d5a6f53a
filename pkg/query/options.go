// Package query parses pagination, sorting and free-text filter parameters
// from request query strings.
package query

// Query-string keys
const (
	ParamPage         = "page"
	ParamSize         = "size"
	ParamSort         = "sort"
	ParamOrder        = "order"
	ParamQuery        = "q"
	ParamIncludeTotal = "include_total"
)

// Defaults applied by Options.normalize
const (
	DefaultPage           = 1
	DefaultSize           = 50
	DefaultMaxSize        = 100
	DefaultMaxQueryLength = 200
)

// Policy decides what happens to out-of-range page and size values
type Policy int

const (
	// PolicyReject fails with a validation error.
	PolicyReject Policy = iota
	// PolicyClamp moves the value into range.
	PolicyClamp
)

func (p Policy) String() string {
	if p == PolicyClamp {
		return "clamp"
	}
	return "reject"
}

// Options configures Parse for one endpoint
type Options struct {
	DefaultSize    int
	MaxSize        int
	AllowedSort    []string // columns clients may sort by
	DefaultSort    []Sort   // used when the request has no sort
	FilterKeys     []string // extra keys copied into Params.Filters
	MaxQueryLength int      // rune limit for q
	Policy         Policy
}

func (o Options) normalize() Options {
	if o.MaxSize < 1 {
		o.MaxSize = DefaultMaxSize
	}
	if o.DefaultSize < 1 {
		o.DefaultSize = DefaultSize
	}
	if o.DefaultSize > o.MaxSize {
		o.DefaultSize = o.MaxSize
	}
	if o.MaxQueryLength < 1 {
		o.MaxQueryLength = DefaultMaxQueryLength
	}
	return o
}

func (o Options) sortAllowed(field string) bool {
	for _, allowed := range o.AllowedSort {
		if field == allowed {
			return true
		}
	}
	return false
}
