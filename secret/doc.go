// Package secret resolves credentials referenced from fragcache
// configuration, such as the Postgres DSN, the Redis password and admin API
// keys.
//
// A value is first expanded against the environment (see ExpandEnvStrict).
// Any "secretref:<provider>:<ref>" it then contains is replaced by the
// named Provider's answer:
//
//	secretref:env:FRAGCACHE_PG_PASSWORD
//	secretref:file:/run/secrets/redis_password
//	postgres://app:secretref:env:PGPASS@db/app
package secret
