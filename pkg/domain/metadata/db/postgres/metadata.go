package postgres

import (
	"context"
	"time"

	kpool "github.com/recmeta/recmeta/pkg/conn/db/postgres/pool"
	"github.com/recmeta/recmeta/pkg/domain"
	kdb "github.com/recmeta/recmeta/pkg/domain/metadata/db"
)

type metadataPG struct { // implements kdb.MetadataInterface
	pool kpool.Pool
}

var _ kdb.MetadataInterface = &metadataPG{}

// args:
//   - pool: connection pool used to query SQL
func New(pool kpool.Pool) *metadataPG {
	return &metadataPG{pool: pool}
}

func (m *metadataPG) Close() error {
	m.pool.Close()
	return nil
}

func (m *metadataPG) ListExecutions(ctx context.Context) ([]domain.Execution, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select "id", "type", "update_time" from "execution"`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return m.scanExecutions(ctx, conn, rows)
}

func (m *metadataPG) ExecutionsInContext(ctx context.Context, contextId int) ([]domain.Execution, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "id", "type", "update_time" from "execution"
		inner join "association" on "id" = "execution_id"
		where "context_id" = $1
		`,
		contextId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return m.scanExecutions(ctx, conn, rows)
}

// rowScanner is the subset of pgx.Rows needed to drain execution records.
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func (m *metadataPG) scanExecutions(ctx context.Context, conn kpool.Conn, rows rowScanner) ([]domain.Execution, error) {
	executions := []domain.Execution{}
	index := map[int]int{} // execution id -> position in executions
	for rows.Next() {
		e := domain.Execution{Properties: map[string]string{}}
		var updateTime time.Time
		if err := rows.Scan(&e.Id, &e.Type, &updateTime); err != nil {
			return nil, err
		}
		e.UpdatedAt = updateTime
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

	props, err := conn.Query(
		ctx,
		`
		select "execution_id", "key", "value" from "execution_property"
		where "execution_id" = any($1::int[])
		`,
		ids,
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

func (m *metadataPG) ContextsOfType(ctx context.Context, typeName string) ([]domain.Context, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select "id", "type", "name", "update_time" from "context" where "type" = $1`,
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
		var updateTime time.Time
		if err := rows.Scan(&c.Id, &c.Type, &c.Name, &updateTime); err != nil {
			return nil, err
		}
		c.UpdatedAt = updateTime
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

	props, err := conn.Query(
		ctx,
		`
		select "context_id", "key", "value" from "context_property"
		where "context_id" = any($1::int[])
		`,
		ids,
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

func (m *metadataPG) EventsOfExecutions(ctx context.Context, executionIds []int) ([]domain.Event, error) {
	if len(executionIds) == 0 {
		return []domain.Event{}, nil
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "execution_id", "artifact_id", "type" from "event"
		where "execution_id" = any($1::int[])
		`,
		executionIds,
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

func (m *metadataPG) ArtifactsById(ctx context.Context, artifactIds []int) (map[int]domain.Artifact, error) {
	if len(artifactIds) == 0 {
		return map[int]domain.Artifact{}, nil
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "id", "type", "uri" from "artifact"
		where "id" = any($1::int[])
		`,
		artifactIds,
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

	props, err := conn.Query(
		ctx,
		`
		select "artifact_id", "key", "value" from "artifact_property"
		where "artifact_id" = any($1::int[])
		`,
		artifactIds,
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
			artifacts[artifactId] = a
		}
	}
	if err := props.Err(); err != nil {
		return nil, err
	}

	return artifacts, nil
}
