package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jonwraymond/fragcache/fragment"
)

// ErrBadParam indicates a malformed query parameter.
var ErrBadParam = errors.New("admin: bad parameter")

// ParseFilter builds a record filter from query parameters.
//
// token is decoded as JSON when it parses as a single JSON scalar, so
// token=42 matches the number 42 and token="42" the string; anything else
// is matched as a plain string, including "null" which a filter cannot
// otherwise express.
func ParseFilter(q url.Values) (fragment.Filter, error) {
	var f fragment.Filter

	f.Names = q["name"]

	unscopedSite, err := boolParam(q, "unscoped_site")
	if err != nil {
		return f, err
	}
	unscopedUser, err := boolParam(q, "unscoped_user")
	if err != nil {
		return f, err
	}
	if f.All, err = boolParam(q, "all"); err != nil {
		return f, err
	}

	if q.Has("site") && unscopedSite {
		return f, fmt.Errorf("%w: site and unscoped_site are exclusive", ErrBadParam)
	}
	if q.Has("user") && unscopedUser {
		return f, fmt.Errorf("%w: user and unscoped_user are exclusive", ErrBadParam)
	}
	switch {
	case unscopedSite:
		f.Site = fragment.Unscoped()
	case q.Get("site") != "":
		f.Site = fragment.Scope(q.Get("site"))
	}
	switch {
	case unscopedUser:
		f.User = fragment.Unscoped()
	case q.Get("user") != "":
		f.User = fragment.Scope(q.Get("user"))
	}

	if q.Has("token") {
		f.Token = parseToken(q.Get("token"))
	}
	f.TokenContains = q.Get("token_contains")
	return f, nil
}

// Query is the inverse of ParseFilter for the parameters fragctl sends.
func Query(f fragment.Filter) url.Values {
	q := url.Values{}
	for _, n := range f.Names {
		q.Add("name", n)
	}
	if f.Name != "" {
		q.Add("name", f.Name)
	}
	scope := func(p *string, name string) {
		switch {
		case p == nil:
		case *p == "":
			q.Set("unscoped_"+name, "true")
		default:
			q.Set(name, *p)
		}
	}
	scope(f.Site, "site")
	scope(f.User, "user")
	if f.Token != nil {
		b, _ := json.Marshal(f.Token)
		q.Set("token", string(b))
	}
	if f.TokenContains != "" {
		q.Set("token_contains", f.TokenContains)
	}
	if f.All {
		q.Set("all", "true")
	}
	return q
}

func parseToken(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch v.(type) {
	case string, bool, json.Number:
		return v
	}
	return raw
}

func boolParam(q url.Values, name string) (bool, error) {
	if !q.Has(name) {
		return false, nil
	}
	v := q.Get(name)
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrBadParam, name, v)
	}
	return b, nil
}
