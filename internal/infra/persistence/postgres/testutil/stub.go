// Package testutil provides a fake database/sql driver holding a single
// segments table in memory. It recognises exactly the statements issued by
// the sqltable package and rejects anything else.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

// Segment is one stored row.
type Segment struct {
	Size     int64
	Data     []byte
	Modified int64
}

// StubConn records statements and keeps the segments table in memory.
type StubConn struct {
	Execs      []string
	Created    []string
	Segments   map[string]Segment
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
}

var (
	stubSeq    atomic.Int64
	errUnknown = errors.New("stub: unsupported statement")

	insertRe = regexp.MustCompile(`(?is)^INSERT INTO segments \(name, size, data, modified\)`)
	deleteRe = regexp.MustCompile(`(?is)^DELETE FROM segments WHERE name = `)
	selectRe = regexp.MustCompile(`(?is)^SELECT (.+?) FROM segments(\s+WHERE name = \S+)?$`)
)

// NewStubDB registers a fresh driver instance and opens a handle on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Segments: make(map[string]Segment)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; every statement goes through the
// context-aware fast paths instead.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errUnknown }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return errors.New("stub: ping failed")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. Writes are applied immediately;
// Commit only reports the configured failure.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	query = strings.TrimSpace(query)
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stub: exec failed")
	}
	switch {
	case strings.HasPrefix(strings.ToUpper(query), "CREATE TABLE"):
		c.Created = append(c.Created, query)
		return driver.RowsAffected(0), nil
	case insertRe.MatchString(query):
		if len(args) != 4 {
			return nil, fmt.Errorf("stub: insert wants 4 args, got %d", len(args))
		}
		name, _ := args[0].Value.(string)
		size, _ := args[1].Value.(int64)
		data, _ := args[2].Value.([]byte)
		mod, _ := args[3].Value.(int64)
		c.Segments[name] = Segment{Size: size, Data: append([]byte(nil), data...), Modified: mod}
		return driver.RowsAffected(1), nil
	case deleteRe.MatchString(query):
		if len(args) != 1 {
			return nil, fmt.Errorf("stub: delete wants 1 arg, got %d", len(args))
		}
		name, _ := args[0].Value.(string)
		if _, ok := c.Segments[name]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.Segments, name)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknown, query)
}

// QueryContext implements driver.QueryerContext for column lists drawn from
// name, size, data and modified, optionally filtered by name.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	m := selectRe.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return nil, fmt.Errorf("%w: %s", errUnknown, query)
	}
	cols := strings.Split(m[1], ",")
	for i := range cols {
		cols[i] = strings.ToLower(strings.TrimSpace(cols[i]))
	}
	names := make([]string, 0, len(c.Segments))
	if m[2] != "" {
		if len(args) != 1 {
			return nil, fmt.Errorf("stub: select wants 1 arg, got %d", len(args))
		}
		name, _ := args[0].Value.(string)
		if _, ok := c.Segments[name]; ok {
			names = append(names, name)
		}
	} else {
		for name := range c.Segments {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	rows := &stubRows{cols: cols, err: c.RowsErr}
	for _, name := range names {
		seg := c.Segments[name]
		row := make([]driver.Value, len(cols))
		for i, col := range cols {
			switch col {
			case "name":
				row[i] = name
			case "size":
				row[i] = seg.Size
			case "data":
				row[i] = seg.Data
			case "modified":
				row[i] = seg.Modified
			default:
				return nil, fmt.Errorf("stub: unknown column %q", col)
			}
		}
		rows.rows = append(rows.rows, row)
	}
	return rows, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit failed")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}
