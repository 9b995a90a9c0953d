package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var errTest = errors.New("test error")

type fakeResult struct {
	affected int64
}

func (fakeResult) LastInsertId() (int64, error)  { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i >= len(r.values) {
			break
		}
		switch d := dest[i].(type) {
		case *string:
			*d = r.values[i].(string)
		case *[]byte:
			*d = r.values[i].([]byte)
		case *bool:
			*d = r.values[i].(bool)
		case *int:
			*d = r.values[i].(int)
		case *time.Time:
			*d = r.values[i].(time.Time)
		case *sql.NullTime:
			*d = r.values[i].(sql.NullTime)
		case *sql.NullString:
			*d = r.values[i].(sql.NullString)
		default:
			// ignore unsupported
		}
	}
	return nil
}

type fakeConn struct {
	row          rowScanner
	rows         []rowScanner
	queryCalls   int
	execErr      error
	affected     int64
	zeroAffected bool
	execCalls    int
	lastQuery    string
	lastArgs     []any
	execQueries  []string
	execArgs     [][]any
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.execCalls++
	c.execQueries = append(c.execQueries, query)
	c.execArgs = append(c.execArgs, args)
	if c.execErr != nil {
		return fakeResult{}, c.execErr
	}
	if c.zeroAffected {
		return fakeResult{affected: 0}, nil
	}
	affected := c.affected
	if affected == 0 {
		affected = 1
	}
	return fakeResult{affected: affected}, nil
}

func (c *fakeConn) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	c.lastQuery = query
	c.lastArgs = args
	if len(c.rows) > 0 {
		row := c.rows[c.queryCalls%len(c.rows)]
		c.queryCalls++
		return row
	}
	c.queryCalls++
	if c.row != nil {
		return c.row
	}
	return fakeRow{err: sql.ErrNoRows}
}

func newFakeDB(conn *fakeConn) *DB {
	return &DB{conn: conn}
}
