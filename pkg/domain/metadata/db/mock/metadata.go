package mocks

import (
	"context"
	"errors"

	"github.com/recmeta/recmeta/pkg/domain"
	kdb "github.com/recmeta/recmeta/pkg/domain/metadata/db"
)

type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

type MetadataInterface struct {
	Impl struct {
		ListExecutions      func(context.Context) ([]domain.Execution, error)
		ExecutionsInContext func(context.Context, int) ([]domain.Execution, error)
		ContextsOfType      func(context.Context, string) ([]domain.Context, error)
		EventsOfExecutions  func(context.Context, []int) ([]domain.Event, error)
		ArtifactsById       func(context.Context, []int) (map[int]domain.Artifact, error)
		Close               func() error
	}
	Calls struct {
		ListExecutions      CallLog[struct{}]
		ExecutionsInContext CallLog[struct{ ContextId int }]
		ContextsOfType      CallLog[struct{ TypeName string }]
		EventsOfExecutions  CallLog[struct{ ExecutionIds []int }]
		ArtifactsById       CallLog[struct{ ArtifactIds []int }]
		Close               CallLog[struct{}]
	}
}

func NewMetadataInterface() *MetadataInterface {
	return &MetadataInterface{}
}

var _ kdb.MetadataInterface = &MetadataInterface{}

func (mi *MetadataInterface) ListExecutions(ctx context.Context) ([]domain.Execution, error) {
	mi.Calls.ListExecutions = append(mi.Calls.ListExecutions, struct{}{})
	if mi.Impl.ListExecutions != nil {
		return mi.Impl.ListExecutions(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (mi *MetadataInterface) ExecutionsInContext(ctx context.Context, contextId int) ([]domain.Execution, error) {
	mi.Calls.ExecutionsInContext = append(mi.Calls.ExecutionsInContext, struct{ ContextId int }{ContextId: contextId})
	if mi.Impl.ExecutionsInContext != nil {
		return mi.Impl.ExecutionsInContext(ctx, contextId)
	}
	panic(errors.New("it should not be called"))
}

func (mi *MetadataInterface) ContextsOfType(ctx context.Context, typeName string) ([]domain.Context, error) {
	mi.Calls.ContextsOfType = append(mi.Calls.ContextsOfType, struct{ TypeName string }{TypeName: typeName})
	if mi.Impl.ContextsOfType != nil {
		return mi.Impl.ContextsOfType(ctx, typeName)
	}
	panic(errors.New("it should not be called"))
}

func (mi *MetadataInterface) EventsOfExecutions(ctx context.Context, executionIds []int) ([]domain.Event, error) {
	mi.Calls.EventsOfExecutions = append(mi.Calls.EventsOfExecutions, struct{ ExecutionIds []int }{ExecutionIds: executionIds})
	if mi.Impl.EventsOfExecutions != nil {
		return mi.Impl.EventsOfExecutions(ctx, executionIds)
	}
	panic(errors.New("it should not be called"))
}

func (mi *MetadataInterface) ArtifactsById(ctx context.Context, artifactIds []int) (map[int]domain.Artifact, error) {
	mi.Calls.ArtifactsById = append(mi.Calls.ArtifactsById, struct{ ArtifactIds []int }{ArtifactIds: artifactIds})
	if mi.Impl.ArtifactsById != nil {
		return mi.Impl.ArtifactsById(ctx, artifactIds)
	}
	panic(errors.New("it should not be called"))
}

func (mi *MetadataInterface) Close() error {
	mi.Calls.Close = append(mi.Calls.Close, struct{}{})
	if mi.Impl.Close != nil {
		return mi.Impl.Close()
	}
	return nil
}
