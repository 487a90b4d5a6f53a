// Package store holds the PostgreSQL queries of the reference service.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chybatronik/goRestKit/pkg/db"
	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/chybatronik/goRestKit/pkg/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultOperationTimeout bounds a single store call
const DefaultOperationTimeout = 5 * time.Second

// Age limits enforced by the users table
const (
	MinAge = 1
	MaxAge = 120
)

// Filter keys accepted by the list endpoint
const (
	FilterMinAge    = "min_age"
	FilterMaxAge    = "max_age"
	FilterStartDate = "start_date"
	FilterEndDate   = "end_date"
)

const ErrCodeInvalidFilter = "INVALID_FILTER_PARAMETER"

// SortFields are the columns clients may sort users by
var SortFields = []string{"recording_date", "age", "first_name", "last_name"}

// FilterKeys lists the query keys ParseFilter reads
var FilterKeys = []string{FilterMinAge, FilterMaxAge, FilterStartDate, FilterEndDate}

// DefaultSort lists the newest users first
var DefaultSort = []query.Sort{{Field: "recording_date", Direction: query.Desc}}

const userColumns = "id, first_name, last_name, age, recording_date"

// Querier runs SQL. *pgxpool.Pool, *pgx.Conn and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// User is a row of the users table
type User struct {
	ID            string `json:"id" db:"id"`
	FirstName     string `json:"first_name" db:"first_name"`
	LastName      string `json:"last_name" db:"last_name"`
	Age           int    `json:"age" db:"age"`
	RecordingDate int64  `json:"recording_date" db:"recording_date"` // unix seconds
}

// NewUser holds the columns supplied on insert
type NewUser struct {
	FirstName string
	LastName  string
	Age       int
}

// Filter narrows a user listing. Nil bounds are open.
type Filter struct {
	MinAge    *int
	MaxAge    *int
	StartDate *int64
	EndDate   *int64
	Name      string // case-insensitive substring of "first last"
}

// ParseFilter reads the typed filters out of params
func ParseFilter(p *query.Params) (Filter, error) {
	f := Filter{Name: p.Query}

	var err error
	if f.MinAge, err = intFilter(p.Filters, FilterMinAge, MinAge, MaxAge); err != nil {
		return Filter{}, err
	}
	if f.MaxAge, err = intFilter(p.Filters, FilterMaxAge, MinAge, MaxAge); err != nil {
		return Filter{}, err
	}
	if f.MinAge != nil && f.MaxAge != nil && *f.MinAge > *f.MaxAge {
		return Filter{}, pkgerrors.NewFieldValidationError(FilterMinAge, ErrCodeInvalidFilter,
			fmt.Sprintf("Invalid age range: min_age (%d) cannot be greater than max_age (%d)", *f.MinAge, *f.MaxAge))
	}

	if f.StartDate, err = dateFilter(p.Filters, FilterStartDate); err != nil {
		return Filter{}, err
	}
	if f.EndDate, err = dateFilter(p.Filters, FilterEndDate); err != nil {
		return Filter{}, err
	}
	if f.StartDate != nil && f.EndDate != nil && *f.StartDate > *f.EndDate {
		return Filter{}, pkgerrors.NewFieldValidationError(FilterStartDate, ErrCodeInvalidFilter,
			"Invalid date range: start_date cannot be greater than end_date")
	}

	return f, nil
}

func intFilter(filters map[string]string, key string, lo, hi int) (*int, error) {
	raw, ok := filters[key]
	if !ok {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return nil, pkgerrors.NewFieldValidationError(key, ErrCodeInvalidFilter,
			fmt.Sprintf("Invalid %s parameter. Must be between %d and %d", key, lo, hi))
	}
	return &v, nil
}

func dateFilter(filters map[string]string, key string) (*int64, error) {
	raw, ok := filters[key]
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, pkgerrors.NewFieldValidationError(key, ErrCodeInvalidFilter,
			fmt.Sprintf("Invalid %s parameter. Must be a unix timestamp", key))
	}
	return &v, nil
}

// where renders the filter as a WHERE clause with positional arguments
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.MinAge != nil {
		add("age >= $%d", *f.MinAge)
	}
	if f.MaxAge != nil {
		add("age <= $%d", *f.MaxAge)
	}
	if f.StartDate != nil {
		add("recording_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("recording_date <= $%d", *f.EndDate)
	}
	if f.Name != "" {
		add("(first_name || ' ' || last_name) ILIKE $%d ESCAPE '\\'", "%"+escapeLike(f.Name)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// listQuery builds the page and count statements for p. Sort columns come
// from the allow-list checked by query.Parse, so they are safe to inline.
func listQuery(p *query.Params, f Filter) (list string, count string, args []any) {
	where, args := f.where()
	orderBy := p.OrderBy("recording_date DESC") + ", id"

	list = fmt.Sprintf("SELECT %s FROM users%s ORDER BY %s LIMIT $%d OFFSET $%d",
		userColumns, where, orderBy, len(args)+1, len(args)+2)
	count = "SELECT COUNT(*) FROM users" + where
	return list, count, args
}

// ListUsers returns one page of users. The total is only counted when the
// client asked for it.
func ListUsers(ctx context.Context, q Querier, p *query.Params, f Filter) ([]User, *int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOperationTimeout)
	defer cancel()

	list, count, args := listQuery(p, f)

	rows, err := q.Query(ctx, list, append(args, p.Limit(), p.Offset())...)
	if err != nil {
		return nil, nil, db.MapError(fmt.Errorf("failed to query users: %w", err))
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[User])
	if err != nil {
		return nil, nil, db.MapError(fmt.Errorf("failed to scan users: %w", err))
	}

	if !p.IncludeTotal {
		return users, nil, nil
	}

	var total int64
	if err := q.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return nil, nil, db.MapError(fmt.Errorf("failed to count users: %w", err))
	}
	return users, &total, nil
}

// GetUser loads a user by id. Malformed ids are reported as not found.
func GetUser(ctx context.Context, q Querier, id string) (*User, error) {
	var uid pgtype.UUID
	if err := uid.Scan(id); err != nil {
		return nil, pkgerrors.NewResourceNotFoundError("User", "id", id)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultOperationTimeout)
	defer cancel()

	rows, err := q.Query(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", uid)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("failed to get user %s: %w", id, err))
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[User])
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, pkgerrors.NewResourceNotFoundError("User", "id", id)
		}
		return nil, db.MapError(fmt.Errorf("failed to get user %s: %w", id, err))
	}
	return &user, nil
}

// InsertUser inserts u and returns the stored row
func InsertUser(ctx context.Context, q Querier, u NewUser) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOperationTimeout)
	defer cancel()

	rows, err := q.Query(ctx,
		"INSERT INTO users (first_name, last_name, age) VALUES ($1, $2, $3) RETURNING "+userColumns,
		u.FirstName, u.LastName, u.Age)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("failed to create user: %w", err))
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[User])
	if err != nil {
		return nil, db.MapError(fmt.Errorf("failed to create user: %w", err))
	}
	return &user, nil
}

// Users runs the user queries against a db.State
type Users struct {
	state *db.State
}

// NewUsers creates a Users store
func NewUsers(state *db.State) *Users {
	return &Users{state: state}
}

// List returns a page of users matching f
func (s *Users) List(ctx context.Context, p *query.Params, f Filter) ([]User, *int64, error) {
	return ListUsers(ctx, s.state.Pool, p, f)
}

// Get loads one user
func (s *Users) Get(ctx context.Context, id string) (*User, error) {
	return GetUser(ctx, s.state.Pool, id)
}

// Create inserts users in one transaction; either all rows are stored or none
func (s *Users) Create(ctx context.Context, users ...NewUser) ([]User, error) {
	created := make([]User, 0, len(users))
	err := s.state.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, u := range users {
			user, err := InsertUser(ctx, tx, u)
			if err != nil {
				return err
			}
			created = append(created, *user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
