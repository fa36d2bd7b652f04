package domain

import (
	"fmt"
	"time"

	"github.com/recmeta/recmeta/pkg/cmp"
)

// Direction of an Event; "How does the execution use the artifact?"
type EventType string

const (
	// the artifact is consumed by the execution.
	EventInput EventType = "input"

	// the artifact is produced by the execution.
	EventOutput EventType = "output"
)

func (et EventType) String() string {
	return string(et)
}

func AsEventType(s string) (EventType, error) {
	switch s {
	case string(EventInput):
		return EventInput, nil
	case string(EventOutput):
		return EventOutput, nil
	default:
		return "", fmt.Errorf("'%s' is not EventType", s)
	}
}

// Well-known property keys.
//
// The orchestrator stamps these when it writes records.
const (
	// property of Execution: pipeline run which the execution belongs to.
	KeyRunId = "run_id"

	// property of Context: name of the pipeline the run context is of.
	KeyPipelineName = "pipeline_name"

	// property of Artifact: id of the component which produced it.
	KeyProducerComponent = "producer_component"

	// property of Artifact: name of the output the artifact is bound to.
	KeyArtifactName = "name"
)

// Context type which groups all executions of one pipeline run.
const ContextTypePipelineRun = "pipeline_run"

// A recorded run of one pipeline component.
type Execution struct {
	Id int

	// type name of the component, e.g. "trainer".
	Type string

	Properties map[string]string

	// last update timestamp.
	UpdatedAt time.Time
}

// RunId is the pipeline run this execution belongs to.
//
// Empty when the orchestrator did not stamp one.
func (e Execution) RunId() string {
	return e.Properties[KeyRunId]
}

func (e Execution) Equal(o Execution) bool {
	return e.Id == o.Id &&
		e.Type == o.Type &&
		e.UpdatedAt.Equal(o.UpdatedAt) &&
		cmp.MapEq(e.Properties, o.Properties)
}

// A named, typed data object produced or consumed by executions.
type Artifact struct {
	Id int

	// type name of the artifact, e.g. "model".
	Type string

	// location of the artifact's file tree.
	URI string

	Properties map[string]string
}

func (a Artifact) ProducerComponent() string {
	return a.Properties[KeyProducerComponent]
}

func (a Artifact) Name() string {
	return a.Properties[KeyArtifactName]
}

func (a Artifact) Equal(o Artifact) bool {
	return a.Id == o.Id &&
		a.Type == o.Type &&
		a.URI == o.URI &&
		cmp.MapEq(a.Properties, o.Properties)
}

// Link between an Execution and an Artifact.
type Event struct {
	ExecutionId int
	ArtifactId  int
	Type        EventType
}

// A grouping of executions, e.g. one pipeline run.
type Context struct {
	Id int

	// type name of the context, e.g. ContextTypePipelineRun.
	Type string

	// context name, unique per type.
	Name string

	Properties map[string]string

	// last update timestamp.
	UpdatedAt time.Time
}

func (c Context) PipelineName() string {
	return c.Properties[KeyPipelineName]
}

func (c Context) Equal(o Context) bool {
	return c.Id == o.Id &&
		c.Type == o.Type &&
		c.Name == o.Name &&
		c.UpdatedAt.Equal(o.UpdatedAt) &&
		cmp.MapEq(c.Properties, o.Properties)
}

// LatestContext picks the most recently updated context.
//
// Returns false when contexts is empty.
func LatestContext(contexts []Context) (Context, bool) {
	if len(contexts) == 0 {
		return Context{}, false
	}
	latest := contexts[0]
	for _, c := range contexts[1:] {
		if latest.UpdatedAt.Before(c.UpdatedAt) {
			latest = c
		}
	}
	return latest, true
}
