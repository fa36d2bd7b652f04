package record_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/youta-t/flarc"

	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/internal/commandline"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/logger"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/record"
	"github.com/recmeta/recmeta/pkg/domain"
	mocks "github.com/recmeta/recmeta/pkg/domain/metadata/db/mock"
	"github.com/recmeta/recmeta/pkg/transfer"
	"github.com/recmeta/recmeta/pkg/transfer/local"
	"github.com/recmeta/recmeta/pkg/utils/try"
)

func TestRecordCommand_usageErrors(t *testing.T) {
	type when struct {
		flags record.Flags
	}

	theory := func(when when) func(*testing.T) {
		return func(t *testing.T) {
			store := mocks.NewMetadataInterface()
			registry := transfer.NewRegistry(local.New(local.WithProgressOutput(io.Discard)))

			testee := record.Task()
			err := testee(
				context.Background(),
				logger.Null(),
				store,
				registry,
				commandline.MockCommandline[record.Flags]{
					Fullname_: "recmeta record",
					Stdout_:   io.Discard,
					Stderr_:   io.Discard,
					Flags_:    when.flags,
					Args_:     map[string][]string{},
				},
				[]any{},
			)

			if !errors.Is(err, flarc.ErrUsage) {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}

	t.Run("when neither --run nor --pipeline is given, it is usage error", theory(
		when{flags: record.Flags{}},
	))
	t.Run("when both --run and --pipeline are given, it is usage error", theory(
		when{flags: record.Flags{Run: "run-a", Pipeline: "taxi"}},
	))
}

func TestRecordCommand_reportsUnresolvableDest(t *testing.T) {
	t.Setenv("HOME", "") // make ~ expansion fail

	store := mocks.NewMetadataInterface()
	registry := transfer.NewRegistry(local.New(local.WithProgressOutput(io.Discard)))

	testee := record.Task()
	err := testee(
		context.Background(),
		logger.Null(),
		store,
		registry,
		commandline.MockCommandline[record.Flags]{
			Fullname_: "recmeta record",
			Stdout_:   io.Discard,
			Stderr_:   io.Discard,
			Flags_:    record.Flags{Run: "run-a"},
			Args_: map[string][]string{
				record.ARG_DEST: {"~/replay"},
			},
		},
		[]any{},
	)
	if err == nil {
		t.Fatal("task does not error for unresolvable dest")
	}
	if !strings.Contains(err.Error(), "'~/replay'") {
		t.Errorf("error does not name the given dest: %v", err)
	}
}

func TestRecordCommand_copiesRunOutputs(t *testing.T) {
	root := t.TempDir()
	modelSrc := filepath.Join(root, "store", "Trainer", "model", "1")
	if err := os.MkdirAll(modelSrc, os.FileMode(0777)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(
		filepath.Join(modelSrc, "saved_model.pb"), []byte("model-bytes"), os.FileMode(0644),
	); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(root, "dest")

	store := mocks.NewMetadataInterface()
	store.Impl.ListExecutions = func(context.Context) ([]domain.Execution, error) {
		return []domain.Execution{
			{
				Id: 1, Type: "trainer",
				Properties: map[string]string{"run_id": "run-a"},
				UpdatedAt:  time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
			},
		}, nil
	}
	store.Impl.EventsOfExecutions = func(_ context.Context, ids []int) ([]domain.Event, error) {
		return []domain.Event{
			{ExecutionId: 1, ArtifactId: 11, Type: domain.EventOutput},
		}, nil
	}
	store.Impl.ArtifactsById = func(_ context.Context, ids []int) (map[int]domain.Artifact, error) {
		return map[int]domain.Artifact{
			11: {
				Id: 11, Type: "model", URI: modelSrc,
				Properties: map[string]string{
					"producer_component": "Trainer", "name": "model",
				},
			},
		}, nil
	}

	registry := transfer.NewRegistry(local.New(local.WithProgressOutput(io.Discard)))

	stderr := new(strings.Builder)
	testee := record.Task()
	err := testee(
		context.Background(),
		logger.Null(),
		store,
		registry,
		commandline.MockCommandline[record.Flags]{
			Fullname_: "recmeta record",
			Stdout_:   io.Discard,
			Stderr_:   stderr,
			Flags_:    record.Flags{Run: "run-a"},
			Args_: map[string][]string{
				record.ARG_DEST: {dest},
			},
		},
		[]any{},
	)
	if err != nil {
		t.Fatalf("task errors: %v", err)
	}

	copied := filepath.Join(dest, "Trainer", "model", "saved_model.pb")
	actual := string(try.To(os.ReadFile(copied)).OrFatal(t))
	if actual != "model-bytes" {
		t.Errorf("unexpected content: %s", actual)
	}
}
