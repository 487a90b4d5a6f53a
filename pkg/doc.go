// Package pkg groups the reusable REST building blocks of goRestKit.
//
//   - errors: the AppError model and its JSON error responses
//   - query: pagination, sort and filter query parameters
//   - page: the paged response envelope
//   - response: JSON writers and request body decoding
//   - db: pgx pool state, transactions and error mapping
//   - stream: copy helpers for streamed bodies
//   - resttest: assertions for handler tests
package pkg
