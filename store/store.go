// Package store is the metadata store: the local relational cache of
// presentation facts for tenants, users, albums, assets and api tokens.
// The remote media store owns binary content; rows here own everything else.
package store

import (
	"errors"
	"strings"
	"sync"

	"gallery/errs"

	"gorm.io/gorm"
)

// PageSize is the fixed page size for asset listings.
const PageSize = 20

type Store struct {
	db *gorm.DB
	// SQLite allows a single writer; serialize write transactions so
	// concurrent sagas never trip over SQLITE_BUSY. Callers don't manage
	// this - it is this package's obligation.
	writeMu         sync.Mutex
	serializeWrites bool
}

func New(gdb *gorm.DB, serializeWrites bool) *Store {
	return &Store{db: gdb, serializeWrites: serializeWrites}
}

// DB exposes the underlying handle for read-only composition (health checks,
// session store). Writes must go through Store methods.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) write(fn func(tx *gorm.DB) error) error {
	if s.serializeWrites {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	return s.db.Transaction(fn)
}

// translate maps gorm/driver errors into the shared taxonomy.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var kinded *errs.Error
	if errors.As(err, &kinded) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("%s not found", what)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate entry") {
		return errs.Wrap(errs.KindConflict, err, what+" already exists")
	}
	return err
}

// escapeLike escapes LIKE wildcards; queries use ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
