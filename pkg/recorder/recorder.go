// Package recorder copies the output artifacts of a recorded pipeline
// run out of the metadata store into a local directory tree, keyed as
// "<dest>/<producer component>/<artifact name>".
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/recmeta/recmeta/pkg/domain"
	kdb "github.com/recmeta/recmeta/pkg/domain/metadata/db"
	"github.com/recmeta/recmeta/pkg/transfer"
	"github.com/recmeta/recmeta/pkg/utils/slices"
)

var (
	ErrNoTarget         = errors.New("either run id or pipeline name is required")
	ErrRunNotFound      = errors.New("run id is not recorded in the metadata store")
	ErrPipelineNotFound = errors.New("no run context is recorded for the pipeline")
	ErrSourceNotFound   = errors.New("artifact source does not exist")
)

// Target selects which executions are recorded.
//
// Set exactly one of RunId and PipelineName.
// With PipelineName, the most recently updated run of that pipeline
// is selected.
type Target struct {
	RunId        string
	PipelineName string
}

// Entry is one artifact to be copied.
type Entry struct {
	ArtifactId int

	// component which produced the artifact.
	Component string

	// output name the artifact is bound to.
	Name string

	// source artifact uri.
	Source string

	// local destination directory.
	Dest string
}

type Recorder struct {
	store    kdb.MetadataInterface
	transfer *transfer.Registry
}

func New(store kdb.MetadataInterface, registry *transfer.Registry) *Recorder {
	return &Recorder{store: store, transfer: registry}
}

// Plan resolves the target run and returns the artifact copies to be
// done, sorted by artifact id.
//
// Artifacts missing producer component or name are skipped with a
// warning; their destination cannot be determined.
func (r *Recorder) Plan(ctx context.Context, l *log.Logger, dest string, target Target) ([]Entry, error) {
	executions, err := r.findExecutions(ctx, target)
	if err != nil {
		return nil, err
	}

	events, err := r.store.EventsOfExecutions(
		ctx,
		slices.Map(executions, func(e domain.Execution) int { return e.Id }),
	)
	if err != nil {
		return nil, err
	}

	artifactIds := map[int]struct{}{}
	for _, ev := range events {
		if ev.Type != domain.EventOutput {
			continue
		}
		artifactIds[ev.ArtifactId] = struct{}{}
	}

	artifacts, err := r.store.ArtifactsById(ctx, slices.KeysOf(artifactIds))
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, a := range artifacts {
		component := a.ProducerComponent()
		name := a.Name()
		if component == "" || name == "" {
			l.Printf(
				"[WARN] artifact %d (%s) has no producer_component/name property. skipped.",
				a.Id, a.URI,
			)
			continue
		}
		entries = append(entries, Entry{
			ArtifactId: a.Id,
			Component:  component,
			Name:       name,
			Source:     a.URI,
			Dest:       filepath.Join(dest, component, name),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ArtifactId < entries[j].ArtifactId
	})

	return entries, nil
}

// Record executes Plan and copies each entry.
//
// Copy failures do not stop remaining entries; all failures are
// aggregated into the returned error.
func (r *Recorder) Record(ctx context.Context, l *log.Logger, dest string, target Target) error {
	entries, err := r.Plan(ctx, l, dest, target)
	if err != nil {
		return err
	}

	var aggregated *multierror.Error
	for _, entry := range entries {
		if err := r.copy(ctx, entry); err != nil {
			aggregated = multierror.Append(
				aggregated,
				fmt.Errorf("%s/%s (%s): %w", entry.Component, entry.Name, entry.Source, err),
			)
			continue
		}
		l.Printf("recorded %s/%s", entry.Component, entry.Name)
	}
	if err := aggregated.ErrorOrNil(); err != nil {
		return err
	}

	l.Printf("pipeline recorded at %s", dest)
	return nil
}

func (r *Recorder) copy(ctx context.Context, entry Entry) error {
	fetcher, err := r.transfer.For(entry.Source)
	if err != nil {
		return err
	}

	ok, err := fetcher.Exists(ctx, entry.Source)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSourceNotFound
	}

	if err := os.MkdirAll(entry.Dest, os.FileMode(0777)); err != nil {
		return err
	}
	return fetcher.Fetch(ctx, entry.Source, entry.Dest)
}

func (r *Recorder) findExecutions(ctx context.Context, target Target) ([]domain.Execution, error) {
	switch {
	case target.RunId != "":
		all, err := r.store.ListExecutions(ctx)
		if err != nil {
			return nil, err
		}
		byRunId := slices.ToMultiMap(all, func(e domain.Execution) (string, domain.Execution) {
			return e.RunId(), e
		})
		executions, ok := byRunId[target.RunId]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, target.RunId)
		}
		return executions, nil

	case target.PipelineName != "":
		contexts, err := r.store.ContextsOfType(ctx, domain.ContextTypePipelineRun)
		if err != nil {
			return nil, err
		}
		runs := slices.Filter(contexts, func(c domain.Context) bool {
			return c.PipelineName() == target.PipelineName
		})
		latest, ok := domain.LatestContext(runs)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, target.PipelineName)
		}
		return r.store.ExecutionsInContext(ctx, latest.Id)

	default:
		return nil, ErrNoTarget
	}
}
