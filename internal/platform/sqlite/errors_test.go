package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorPassesThroughNonSQLiteErrors(t *testing.T) {
	t.Parallel()

	assert.Nil(t, MapError(nil))
	plain := errors.New("disk full")
	assert.Same(t, plain, MapError(plain))
	assert.False(t, isForeignKeyViolation(plain))
}

func TestDSN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", dsn("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", dsn("file:a.db?mode=rwc"))
}
