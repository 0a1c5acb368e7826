package engine

import "fmt"

// DBCmd identifies a store operation in a QueryMap. Each store reserves its own
// numeric range so commands from different stores never collide.
type DBCmd int

// Query holds the SQL text of one command per supported engine.
type Query struct {
	Sqlite   string
	Postgres string
}

// QueryMap resolves a store command to the SQL for the active engine. Stores
// build one at package init and pick from it at call time.
type QueryMap struct {
	queries map[DBCmd]Query
}

// NewQueryMap makes an empty QueryMap.
func NewQueryMap() *QueryMap {
	return &QueryMap{queries: make(map[DBCmd]Query)}
}

// Add registers per-engine SQL for a command, chainable.
func (q *QueryMap) Add(cmd DBCmd, query Query) *QueryMap {
	q.queries[cmd] = query
	return q
}

// AddSame registers one SQL text for all engines, for queries with no
// dialect differences.
func (q *QueryMap) AddSame(cmd DBCmd, query string) *QueryMap {
	return q.Add(cmd, Query{Sqlite: query, Postgres: query})
}

// Pick returns the SQL for the command on the given engine.
func (q *QueryMap) Pick(dbType Type, cmd DBCmd) (string, error) {
	query, ok := q.queries[cmd]
	if !ok {
		return "", fmt.Errorf("no query registered for command %d", cmd)
	}

	switch dbType {
	case Sqlite:
		return query.Sqlite, nil
	case Postgres:
		return query.Postgres, nil
	default:
		return "", fmt.Errorf("no query variant for engine %q", dbType)
	}
}
