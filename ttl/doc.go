// Package ttl resolves fragment expiry expressions into seconds.
//
// An expression is either an integer number of seconds or a hyphen-joined
// list of named durations such as "2h-30m" or "1d-12h". Named durations are
// drawn from a fixed table:
//
//	1y          one year (365 days)
//	1d .. 364d  days
//	1h .. 23h   hours
//	1m .. 59m   minutes
//
// Tokens outside the table contribute nothing. An expression whose tokens
// add up to zero is rejected with ErrInvalidExpression.
package ttl
