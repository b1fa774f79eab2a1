// Package admin serves the operator HTTP API for fragment records.
//
//	GET    /fragments        list matching records
//	POST   /fragments/clear  evict matching content, keep records
//	DELETE /fragments        evict matching content and delete records
//
// Records are selected with query parameters: name (repeatable), site,
// user, token, token_contains, unscoped_site and unscoped_user. Mutations
// refuse an empty selection unless all=true is given.
package admin
