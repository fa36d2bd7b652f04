package init_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/recmeta/recmeta/cmd/recmeta/config/profiles"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/common"
	recmeta_init "github.com/recmeta/recmeta/cmd/recmeta/subcommands/init"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/internal/commandline"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/logger"
	"github.com/recmeta/recmeta/pkg/utils/try"
)

func TestInitCommand(t *testing.T) {
	root := t.TempDir()

	profileFile := filepath.Join(root, "profile.yaml")
	if err := os.WriteFile(
		profileFile,
		[]byte(`
store:
    sqlite: /var/tfx/metadata.db
`),
		os.FileMode(0644),
	); err != nil {
		t.Fatal(err)
	}

	storePath := filepath.Join(root, ".recmeta", "profile")

	testee := recmeta_init.Task()
	err := testee(
		context.Background(),
		logger.Null(),
		common.CommonFlags{
			Profile:      "local",
			ProfileStore: storePath,
		},
		commandline.MockCommandline[struct{}]{
			Fullname_: "recmeta init",
			Stdout_:   io.Discard,
			Stderr_:   io.Discard,
			Args_: map[string][]string{
				recmeta_init.ARG_PROFILE_FILE: {profileFile},
			},
		},
		[]any{},
	)
	if err != nil {
		t.Fatalf("task errors: %v", err)
	}

	store := try.To(profiles.LoadProfileStore(storePath)).OrFatal(t)
	prof, ok := store["local"]
	if !ok {
		t.Fatalf("profile 'local' is not registered: %v", store)
	}
	if prof.Store.SQLite != "/var/tfx/metadata.db" {
		t.Errorf("unexpected store config: %+v", prof.Store)
	}
}

func TestInitCommand_rejectsBrokenProfile(t *testing.T) {
	root := t.TempDir()

	profileFile := filepath.Join(root, "profile.yaml")
	if err := os.WriteFile(
		profileFile,
		[]byte(`
store:
    sqlite: /var/tfx/metadata.db
    postgres: postgres://user:pass@db:5432/metadata
`),
		os.FileMode(0644),
	); err != nil {
		t.Fatal(err)
	}

	storePath := filepath.Join(root, ".recmeta", "profile")

	testee := recmeta_init.Task()
	err := testee(
		context.Background(),
		logger.Null(),
		common.CommonFlags{Profile: "local", ProfileStore: storePath},
		commandline.MockCommandline[struct{}]{
			Fullname_: "recmeta init",
			Stdout_:   io.Discard,
			Stderr_:   io.Discard,
			Args_: map[string][]string{
				recmeta_init.ARG_PROFILE_FILE: {profileFile},
			},
		},
		[]any{},
	)
	if err == nil {
		t.Errorf("task does not error for broken profile")
	}

	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Errorf("profile store is written for broken profile")
	}
}
