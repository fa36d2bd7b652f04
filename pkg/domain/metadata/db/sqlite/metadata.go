// metadata store backend reading a local, single-file SQLite database.
//
// This is the metadata layout local orchestrators leave behind.
// The driver is the pure-Go modernc.org/sqlite, so recmeta stays CGo-free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/recmeta/recmeta/pkg/domain"
	kdb "github.com/recmeta/recmeta/pkg/domain/metadata/db"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

var ErrDatabaseNotFound = fmt.Errorf("metadata database is not found")

type metadataSqlite struct { // implements kdb.MetadataInterface
	db *sql.DB
}

var _ kdb.MetadataInterface = &metadataSqlite{}

// Open the metadata database at dbpath.
//
// The file must exist already; recmeta never creates metadata stores.
func Open(dbpath string) (*metadataSqlite, error) {
	if s, err := os.Stat(dbpath); err != nil || !s.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbpath)
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	return &metadataSqlite{db: db}, nil
}

// New wraps an opened database handle.
//
// Used by tests to pass in-memory databases.
func New(db *sql.DB) *metadataSqlite {
	return &metadataSqlite{db: db}
}

func (m *metadataSqlite) Close() error {
	return m.db.Close()
}

// timestamp layouts found in the wild for sqlite metadata files.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// placeholders returns "?, ?, ..., ?" (n times) for `in` clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func asAny(ids []int) []any {
	ret := make([]any, len(ids))
	for nth, id := range ids {
		ret[nth] = id
	}
	return ret
}

func (m *metadataSqlite) ListExecutions(ctx context.Context) ([]domain.Execution, error) {
	rows, err := m.db.QueryContext(
		ctx,
		`select "id", "type", "update_time" from "execution"`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return m.scanExecutions(ctx, rows)
}

func (m *metadataSqlite) ExecutionsInContext(ctx context.Context, contextId int) ([]domain.Execution, error) {
	rows, err := m.db.QueryContext(
		ctx,
		`
		select "id", "type", "update_time" from "execution"
		inner join "association" on "id" = "execution_id"
		where "context_id" = ?
		`,
		contextId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return m.scanExecutions(ctx, rows)
}

func (m *metadataSqlite) scanExecutions(ctx context.Context, rows *sql.Rows) ([]domain.Execution, error) {
	executions := []domain.Execution{}
	index := map[int]int{} // execution id -> position in executions
	for rows.Next() {
		e := domain.Execution{Properties: map[string]string{}}
		var updateTime string
		if err := rows.Scan(&e.Id, &e.Type, &updateTime); err != nil {
			return nil, err
		}
		t, err := parseTime(updateTime)
		if err != nil {
			return nil, err
		}
		e.UpdatedAt = t
		index[e.Id] = len(executions)
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return executions, nil
	}

	ids := make([]int, 0, len(executions))
	for _, e := range executions {
		ids = append(ids, e.Id)
	}

	props, err := m.db.QueryContext(
		ctx,
		`
		select "execution_id", "key", "value" from "execution_property"
		where "execution_id" in (`+placeholders(len(ids))+`)
		`,
		asAny(ids)...,
	)
	if err != nil {
		return nil, err
	}
	defer props.Close()

	for props.Next() {
		var executionId int
		var key, value string
		if err := props.Scan(&executionId, &key, &value); err != nil {
			return nil, err
		}
		executions[index[executionId]].Properties[key] = value
	}
	if err := props.Err(); err != nil {
		return nil, err
	}

	return executions, nil
}

func (m *metadataSqlite) ContextsOfType(ctx context.Context, typeName string) ([]domain.Context, error) {
	rows, err := m.db.QueryContext(
		ctx,
		`select "id", "type", "name", "update_time" from "context" where "type" = ?`,
		typeName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contexts := []domain.Context{}
	index := map[int]int{}
	for rows.Next() {
		c := domain.Context{Properties: map[string]string{}}
		var updateTime string
		if err := rows.Scan(&c.Id, &c.Type, &c.Name, &updateTime); err != nil {
			return nil, err
		}
		t, err := parseTime(updateTime)
		if err != nil {
			return nil, err
		}
		c.UpdatedAt = t
		index[c.Id] = len(contexts)
		contexts = append(contexts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return contexts, nil
	}

	ids := make([]int, 0, len(contexts))
	for _, c := range contexts {
		ids = append(ids, c.Id)
	}

	props, err := m.db.QueryContext(
		ctx,
		`
		select "context_id", "key", "value" from "context_property"
		where "context_id" in (`+placeholders(len(ids))+`)
		`,
		asAny(ids)...,
	)
	if err != nil {
		return nil, err
	}
	defer props.Close()

	for props.Next() {
		var contextId int
		var key, value string
		if err := props.Scan(&contextId, &key, &value); err != nil {
			return nil, err
		}
		contexts[index[contextId]].Properties[key] = value
	}
	if err := props.Err(); err != nil {
		return nil, err
	}

	return contexts, nil
}

func (m *metadataSqlite) EventsOfExecutions(ctx context.Context, executionIds []int) ([]domain.Event, error) {
	if len(executionIds) == 0 {
		return []domain.Event{}, nil
	}

	rows, err := m.db.QueryContext(
		ctx,
		`
		select "execution_id", "artifact_id", "type" from "event"
		where "execution_id" in (`+placeholders(len(executionIds))+`)
		`,
		asAny(executionIds)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var ev domain.Event
		var typ string
		if err := rows.Scan(&ev.ExecutionId, &ev.ArtifactId, &typ); err != nil {
			return nil, err
		}
		if ev.Type, err = domain.AsEventType(typ); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (m *metadataSqlite) ArtifactsById(ctx context.Context, artifactIds []int) (map[int]domain.Artifact, error) {
	if len(artifactIds) == 0 {
		return map[int]domain.Artifact{}, nil
	}

	rows, err := m.db.QueryContext(
		ctx,
		`
		select "id", "type", "uri" from "artifact"
		where "id" in (`+placeholders(len(artifactIds))+`)
		`,
		asAny(artifactIds)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts := map[int]domain.Artifact{}
	for rows.Next() {
		a := domain.Artifact{Properties: map[string]string{}}
		if err := rows.Scan(&a.Id, &a.Type, &a.URI); err != nil {
			return nil, err
		}
		artifacts[a.Id] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return artifacts, nil
	}

	props, err := m.db.QueryContext(
		ctx,
		`
		select "artifact_id", "key", "value" from "artifact_property"
		where "artifact_id" in (`+placeholders(len(artifactIds))+`)
		`,
		asAny(artifactIds)...,
	)
	if err != nil {
		return nil, err
	}
	defer props.Close()

	for props.Next() {
		var artifactId int
		var key, value string
		if err := props.Scan(&artifactId, &key, &value); err != nil {
			return nil, err
		}
		if a, ok := artifacts[artifactId]; ok {
			a.Properties[key] = value
		}
	}
	if err := props.Err(); err != nil {
		return nil, err
	}

	return artifacts, nil
}
