package recorder_test

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/recmeta/recmeta/pkg/cmp"
	"github.com/recmeta/recmeta/pkg/domain"
	mocks "github.com/recmeta/recmeta/pkg/domain/metadata/db/mock"
	"github.com/recmeta/recmeta/pkg/recorder"
	"github.com/recmeta/recmeta/pkg/transfer"
	"github.com/recmeta/recmeta/pkg/utils/try"
)

type mockFetcher struct {
	Impl struct {
		Exists func(ctx context.Context, src string) (bool, error)
		Fetch  func(ctx context.Context, src string, dest string) error
	}
	Calls struct {
		Exists []string
		Fetch  []struct{ Src, Dest string }
	}
}

var _ transfer.Fetcher = &mockFetcher{}

func (m *mockFetcher) Exists(ctx context.Context, src string) (bool, error) {
	m.Calls.Exists = append(m.Calls.Exists, src)
	if m.Impl.Exists != nil {
		return m.Impl.Exists(ctx, src)
	}
	return true, nil
}

func (m *mockFetcher) Fetch(ctx context.Context, src string, dest string) error {
	m.Calls.Fetch = append(m.Calls.Fetch, struct{ Src, Dest string }{Src: src, Dest: dest})
	if m.Impl.Fetch != nil {
		return m.Impl.Fetch(ctx, src, dest)
	}
	return nil
}

func nullLogger() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

func TestPlan_byRunId(t *testing.T) {
	executions := []domain.Execution{
		{
			Id: 1, Type: "trainer",
			Properties: map[string]string{"run_id": "run-a"},
			UpdatedAt:  time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			Id: 2, Type: "evaluator",
			Properties: map[string]string{"run_id": "run-a"},
			UpdatedAt:  time.Date(2026, 8, 10, 12, 5, 0, 0, time.UTC),
		},
		{
			Id: 3, Type: "trainer",
			Properties: map[string]string{"run_id": "run-b"},
			UpdatedAt:  time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC),
		},
	}
	events := []domain.Event{
		{ExecutionId: 1, ArtifactId: 10, Type: domain.EventInput},
		{ExecutionId: 1, ArtifactId: 11, Type: domain.EventOutput},
		{ExecutionId: 2, ArtifactId: 11, Type: domain.EventInput},
		{ExecutionId: 2, ArtifactId: 12, Type: domain.EventOutput},
	}
	artifacts := map[int]domain.Artifact{
		11: {
			Id: 11, Type: "model", URI: "/store/Trainer/model/1",
			Properties: map[string]string{
				"producer_component": "Trainer", "name": "model",
			},
		},
		12: {
			Id: 12, Type: "blessing", URI: "/store/Evaluator/blessing/1",
			Properties: map[string]string{
				"producer_component": "Evaluator", "name": "blessing",
			},
		},
	}

	store := mocks.NewMetadataInterface()
	store.Impl.ListExecutions = func(context.Context) ([]domain.Execution, error) {
		return executions, nil
	}
	store.Impl.EventsOfExecutions = func(_ context.Context, ids []int) ([]domain.Event, error) {
		if !cmp.SliceContentEq(ids, []int{1, 2}) {
			t.Errorf("unexpected execution ids: %v", ids)
		}
		return events, nil
	}
	store.Impl.ArtifactsById = func(_ context.Context, ids []int) (map[int]domain.Artifact, error) {
		if !cmp.SliceContentEq(ids, []int{11, 12}) {
			t.Errorf("unexpected artifact ids: %v", ids)
		}
		return artifacts, nil
	}

	testee := recorder.New(store, transfer.NewRegistry(&mockFetcher{}))
	actual := try.To(testee.Plan(
		context.Background(), nullLogger(), "/dest", recorder.Target{RunId: "run-a"},
	)).OrFatal(t)

	expected := []recorder.Entry{
		{
			ArtifactId: 11, Component: "Trainer", Name: "model",
			Source: "/store/Trainer/model/1",
			Dest:   filepath.Join("/dest", "Trainer", "model"),
		},
		{
			ArtifactId: 12, Component: "Evaluator", Name: "blessing",
			Source: "/store/Evaluator/blessing/1",
			Dest:   filepath.Join("/dest", "Evaluator", "blessing"),
		},
	}
	if !cmp.SliceEq(actual, expected) {
		t.Errorf(
			"unmatch: entries:\n- actual   : %+v\n- expected : %+v",
			actual, expected,
		)
	}
}

func TestPlan_byPipeline_picksLatestRun(t *testing.T) {
	contexts := []domain.Context{
		{
			Id: 100, Type: "pipeline_run", Name: "taxi.run-1",
			Properties: map[string]string{"pipeline_name": "taxi"},
			UpdatedAt:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Id: 101, Type: "pipeline_run", Name: "taxi.run-2",
			Properties: map[string]string{"pipeline_name": "taxi"},
			UpdatedAt:  time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			Id: 102, Type: "pipeline_run", Name: "iris.run-9",
			Properties: map[string]string{"pipeline_name": "iris"},
			UpdatedAt:  time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		},
	}

	store := mocks.NewMetadataInterface()
	store.Impl.ContextsOfType = func(_ context.Context, typeName string) ([]domain.Context, error) {
		if typeName != "pipeline_run" {
			t.Errorf("unexpected context type: %s", typeName)
		}
		return contexts, nil
	}
	store.Impl.ExecutionsInContext = func(_ context.Context, contextId int) ([]domain.Execution, error) {
		if contextId != 101 {
			t.Errorf("unexpected context id: %d", contextId)
		}
		return []domain.Execution{{Id: 7, Type: "trainer"}}, nil
	}
	store.Impl.EventsOfExecutions = func(_ context.Context, ids []int) ([]domain.Event, error) {
		if !cmp.SliceEq(ids, []int{7}) {
			t.Errorf("unexpected execution ids: %v", ids)
		}
		return []domain.Event{
			{ExecutionId: 7, ArtifactId: 70, Type: domain.EventOutput},
		}, nil
	}
	store.Impl.ArtifactsById = func(_ context.Context, ids []int) (map[int]domain.Artifact, error) {
		return map[int]domain.Artifact{
			70: {
				Id: 70, Type: "model", URI: "/store/Trainer/model/2",
				Properties: map[string]string{
					"producer_component": "Trainer", "name": "model",
				},
			},
		}, nil
	}

	testee := recorder.New(store, transfer.NewRegistry(&mockFetcher{}))
	actual := try.To(testee.Plan(
		context.Background(), nullLogger(), "/dest", recorder.Target{PipelineName: "taxi"},
	)).OrFatal(t)

	if len(actual) != 1 || actual[0].ArtifactId != 70 {
		t.Errorf("unexpected entries: %+v", actual)
	}
	if store.Calls.ExecutionsInContext.Times() != 1 {
		t.Errorf("ExecutionsInContext should be called once")
	}
}

func TestPlan_skipsArtifactsWithoutDestination(t *testing.T) {
	store := mocks.NewMetadataInterface()
	store.Impl.ListExecutions = func(context.Context) ([]domain.Execution, error) {
		return []domain.Execution{
			{Id: 1, Type: "trainer", Properties: map[string]string{"run_id": "run-a"}},
		}, nil
	}
	store.Impl.EventsOfExecutions = func(_ context.Context, ids []int) ([]domain.Event, error) {
		return []domain.Event{
			{ExecutionId: 1, ArtifactId: 20, Type: domain.EventOutput},
			{ExecutionId: 1, ArtifactId: 21, Type: domain.EventOutput},
		}, nil
	}
	store.Impl.ArtifactsById = func(_ context.Context, ids []int) (map[int]domain.Artifact, error) {
		return map[int]domain.Artifact{
			20: {Id: 20, Type: "model", URI: "/store/anonymous/1"},
			21: {
				Id: 21, Type: "model", URI: "/store/Trainer/model/1",
				Properties: map[string]string{
					"producer_component": "Trainer", "name": "model",
				},
			},
		}, nil
	}

	testee := recorder.New(store, transfer.NewRegistry(&mockFetcher{}))
	actual := try.To(testee.Plan(
		context.Background(), nullLogger(), "/dest", recorder.Target{RunId: "run-a"},
	)).OrFatal(t)

	if len(actual) != 1 || actual[0].ArtifactId != 21 {
		t.Errorf("unexpected entries: %+v", actual)
	}
}

func TestPlan_errors(t *testing.T) {
	type when struct {
		target     recorder.Target
		executions []domain.Execution
		contexts   []domain.Context
	}
	type then struct {
		err error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			store := mocks.NewMetadataInterface()
			store.Impl.ListExecutions = func(context.Context) ([]domain.Execution, error) {
				return when.executions, nil
			}
			store.Impl.ContextsOfType = func(context.Context, string) ([]domain.Context, error) {
				return when.contexts, nil
			}

			testee := recorder.New(store, transfer.NewRegistry(&mockFetcher{}))
			_, err := testee.Plan(
				context.Background(), nullLogger(), "/dest", when.target,
			)
			if !errors.Is(err, then.err) {
				t.Errorf("unexpected error: (actual, expected) = (%v, %v)", err, then.err)
			}
		}
	}

	t.Run("when the run id is not recorded, it errors", theory(
		when{
			target: recorder.Target{RunId: "no-such-run"},
			executions: []domain.Execution{
				{Id: 1, Type: "trainer", Properties: map[string]string{"run_id": "run-a"}},
			},
		},
		then{err: recorder.ErrRunNotFound},
	))

	t.Run("when the pipeline has no run context, it errors", theory(
		when{
			target: recorder.Target{PipelineName: "no-such-pipeline"},
			contexts: []domain.Context{
				{
					Id: 1, Type: "pipeline_run", Name: "taxi.run-1",
					Properties: map[string]string{"pipeline_name": "taxi"},
				},
			},
		},
		then{err: recorder.ErrPipelineNotFound},
	))

	t.Run("when no target is given, it errors", theory(
		when{target: recorder.Target{}},
		then{err: recorder.ErrNoTarget},
	))
}

func singleArtifactStore(t *testing.T, artifacts map[int]domain.Artifact) *mocks.MetadataInterface {
	t.Helper()
	store := mocks.NewMetadataInterface()
	store.Impl.ListExecutions = func(context.Context) ([]domain.Execution, error) {
		return []domain.Execution{
			{Id: 1, Type: "trainer", Properties: map[string]string{"run_id": "run-a"}},
		}, nil
	}
	store.Impl.EventsOfExecutions = func(_ context.Context, ids []int) ([]domain.Event, error) {
		events := []domain.Event{}
		for id := range artifacts {
			events = append(events, domain.Event{
				ExecutionId: 1, ArtifactId: id, Type: domain.EventOutput,
			})
		}
		return events, nil
	}
	store.Impl.ArtifactsById = func(_ context.Context, ids []int) (map[int]domain.Artifact, error) {
		return artifacts, nil
	}
	return store
}

func TestRecord_copiesEachEntry(t *testing.T) {
	dest := t.TempDir()

	store := singleArtifactStore(t, map[int]domain.Artifact{
		11: {
			Id: 11, Type: "model", URI: "/store/Trainer/model/1",
			Properties: map[string]string{
				"producer_component": "Trainer", "name": "model",
			},
		},
		12: {
			Id: 12, Type: "examples", URI: "/store/CsvExampleGen/examples/1",
			Properties: map[string]string{
				"producer_component": "CsvExampleGen", "name": "examples",
			},
		},
	})

	fetcher := &mockFetcher{}
	testee := recorder.New(store, transfer.NewRegistry(fetcher))

	if err := testee.Record(
		context.Background(), nullLogger(), dest, recorder.Target{RunId: "run-a"},
	); err != nil {
		t.Fatalf("Record errors: %v", err)
	}

	expectedFetch := []struct{ Src, Dest string }{
		{Src: "/store/Trainer/model/1", Dest: filepath.Join(dest, "Trainer", "model")},
		{Src: "/store/CsvExampleGen/examples/1", Dest: filepath.Join(dest, "CsvExampleGen", "examples")},
	}
	if !cmp.SliceContentEq(fetcher.Calls.Fetch, expectedFetch) {
		t.Errorf(
			"unmatch: fetch calls:\n- actual   : %+v\n- expected : %+v",
			fetcher.Calls.Fetch, expectedFetch,
		)
	}

	for _, e := range expectedFetch {
		if _, err := os.Stat(e.Dest); err != nil {
			t.Errorf("destination directory is not created: %s", e.Dest)
		}
	}
}

func TestRecord_reportsEveryCopyFailure(t *testing.T) {
	dest := t.TempDir()

	store := singleArtifactStore(t, map[int]domain.Artifact{
		11: {
			Id: 11, Type: "model", URI: "/store/Trainer/model/1",
			Properties: map[string]string{
				"producer_component": "Trainer", "name": "model",
			},
		},
		12: {
			Id: 12, Type: "examples", URI: "/store/CsvExampleGen/examples/1",
			Properties: map[string]string{
				"producer_component": "CsvExampleGen", "name": "examples",
			},
		},
		13: {
			Id: 13, Type: "schema", URI: "/store/SchemaGen/schema/1",
			Properties: map[string]string{
				"producer_component": "SchemaGen", "name": "schema",
			},
		},
	})

	fetcher := &mockFetcher{}
	fetcher.Impl.Exists = func(_ context.Context, src string) (bool, error) {
		return src == "/store/SchemaGen/schema/1", nil
	}

	testee := recorder.New(store, transfer.NewRegistry(fetcher))
	err := testee.Record(
		context.Background(), nullLogger(), dest, recorder.Target{RunId: "run-a"},
	)

	if !errors.Is(err, recorder.ErrSourceNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, failed := range []string{"Trainer/model", "CsvExampleGen/examples"} {
		if !strings.Contains(err.Error(), failed) {
			t.Errorf("error does not report failure of %s: %v", failed, err)
		}
	}
	if strings.Contains(err.Error(), "SchemaGen/schema") {
		t.Errorf("error reports the succeeded copy: %v", err)
	}
	if len(fetcher.Calls.Fetch) != 1 ||
		fetcher.Calls.Fetch[0].Src != "/store/SchemaGen/schema/1" {
		t.Errorf("unexpected fetch calls: %+v", fetcher.Calls.Fetch)
	}
}

func TestRecord_missingSourceDoesNotStopOthers(t *testing.T) {
	dest := t.TempDir()

	store := singleArtifactStore(t, map[int]domain.Artifact{
		11: {
			Id: 11, Type: "model", URI: "/store/Trainer/model/1",
			Properties: map[string]string{
				"producer_component": "Trainer", "name": "model",
			},
		},
		12: {
			Id: 12, Type: "examples", URI: "/store/CsvExampleGen/examples/1",
			Properties: map[string]string{
				"producer_component": "CsvExampleGen", "name": "examples",
			},
		},
	})

	fetcher := &mockFetcher{}
	fetcher.Impl.Exists = func(_ context.Context, src string) (bool, error) {
		return src != "/store/Trainer/model/1", nil
	}

	testee := recorder.New(store, transfer.NewRegistry(fetcher))
	err := testee.Record(
		context.Background(), nullLogger(), dest, recorder.Target{RunId: "run-a"},
	)

	if !errors.Is(err, recorder.ErrSourceNotFound) {
		t.Errorf("unexpected error: %v", err)
	}
	if len(fetcher.Calls.Fetch) != 1 ||
		fetcher.Calls.Fetch[0].Src != "/store/CsvExampleGen/examples/1" {
		t.Errorf("unexpected fetch calls: %+v", fetcher.Calls.Fetch)
	}
}
