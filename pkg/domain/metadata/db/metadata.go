// read-only access to the metadata store.
//
// The store itself is owned by the pipeline orchestrator. recmeta only
// expects the following tables (column types as appropriate per backend):
//
//	"execution"          : "id", "type", "update_time"
//	"execution_property" : "execution_id", "key", "value"
//	"artifact"           : "id", "type", "uri"
//	"artifact_property"  : "artifact_id", "key", "value"
//	"event"              : "execution_id", "artifact_id", "type" ('input'|'output')
//	"context"            : "id", "type", "name", "update_time"
//	"context_property"   : "context_id", "key", "value"
//	"association"        : "context_id", "execution_id"
package db

import (
	"context"

	"github.com/recmeta/recmeta/pkg/domain"
)

type MetadataInterface interface {
	// ListExecutions returns all executions recorded in the store,
	// with their properties.
	ListExecutions(ctx context.Context) ([]domain.Execution, error)

	// ExecutionsInContext returns executions associated with the context.
	//
	// Unknown context id is not an error; it just matches nothing.
	ExecutionsInContext(ctx context.Context, contextId int) ([]domain.Execution, error)

	// ContextsOfType returns all contexts having the given type name.
	ContextsOfType(ctx context.Context, typeName string) ([]domain.Context, error)

	// EventsOfExecutions returns events (both input and output) of the
	// given executions.
	EventsOfExecutions(ctx context.Context, executionIds []int) ([]domain.Event, error)

	// ArtifactsById returns artifacts for each found id, mapped by id.
	//
	// Ids pointing no artifact are left out silently.
	ArtifactsById(ctx context.Context, artifactIds []int) (map[int]domain.Artifact, error)

	// Close releases the connection (pool) behind this store.
	Close() error
}
