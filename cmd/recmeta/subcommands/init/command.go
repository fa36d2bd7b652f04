package init

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/youta-t/flarc"
	yaml "gopkg.in/yaml.v3"

	"github.com/recmeta/recmeta/cmd/recmeta/config/profiles"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/common"
)

const ARG_PROFILE_FILE = "PROFILE_FILE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"register a metadata store profile.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_PROFILE_FILE, Required: true,
				Help: "filepath to a profile file (yaml), which you received from your admin.",
			},
		},
		common.NewTaskWithCommonFlag(Task()),
		flarc.WithDescription(`
Register the given profile into your profile store.

A profile tells recmeta where the metadata store of your pipelines is
(a postgres DSN or a local sqlite filepath), and, when artifacts live
in an object store, how to reach it.

The name of the profile is given by "--profile" (default: current
directory path).
`),
	)
}

func Task() common.TaskWithCommonFlag[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		profileFile := cl.Args()[ARG_PROFILE_FILE][0]

		buf, err := os.ReadFile(profileFile)
		if err != nil {
			return fmt.Errorf("%w: cannot read profile file (%s)", err, profileFile)
		}
		newProfile := &profiles.Profile{}
		if err := yaml.Unmarshal(buf, newProfile); err != nil {
			return fmt.Errorf("%w: profile file (%s) is broken", err, profileFile)
		}
		if err := newProfile.Verify(); err != nil {
			return err
		}

		store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
		if err != nil {
			if !errors.Is(err, profiles.ErrProfileStoreNotFound) {
				return err
			}
			store = profiles.ProfileStore{}
		}

		store[commonFlag.Profile] = newProfile
		if err := store.Save(commonFlag.ProfileStore); err != nil {
			return fmt.Errorf("%w: cannot save profile store (%s)", err, commonFlag.ProfileStore)
		}

		logger.Printf(
			"profile '%s' is registered in %s",
			commonFlag.Profile, commonFlag.ProfileStore,
		)
		return nil
	}
}
