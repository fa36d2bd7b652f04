package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/youta-t/flarc"

	"github.com/recmeta/recmeta/cmd/recmeta/config/profiles"
	kpool "github.com/recmeta/recmeta/pkg/conn/db/postgres/pool"
	metadb "github.com/recmeta/recmeta/pkg/domain/metadata/db"
	pgmeta "github.com/recmeta/recmeta/pkg/domain/metadata/db/postgres"
	sqlitemeta "github.com/recmeta/recmeta/pkg/domain/metadata/db/sqlite"
	"github.com/recmeta/recmeta/pkg/transfer"
	"github.com/recmeta/recmeta/pkg/transfer/local"
	"github.com/recmeta/recmeta/pkg/transfer/s3"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		return task(
			ctx,
			logger,
			commonFlag,
			cl,
			newpos,
		)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	store metadb.MetadataInterface,
	registry *transfer.Registry,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask wraps task with profile loading and metadata store setup.
//
// The store is opened per the selected profile and closed when the task
// returns.
func NewTask[T any](task Task[T]) flarc.Task[T] {

	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		profile, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
		if err != nil {
			if errors.Is(err, profiles.ErrProfileStoreNotFound) {
				return fmt.Errorf(
					"%w. Please try `recmeta init` first to register a profile",
					err,
				)
			}
			return fmt.Errorf(
				"%w: failed to load profile store (%s)",
				err, commonFlag.ProfileStore,
			)
		}
		prof, ok := profile[commonFlag.Profile]
		if !ok {
			return fmt.Errorf(
				"profile '%s' not found in the profile store (%s)",
				commonFlag.Profile, commonFlag.ProfileStore,
			)
		}
		if err := prof.Verify(); err != nil {
			return fmt.Errorf(
				"%w: profile '%s' in %s. Remove it and try `recmeta init` again",
				err, commonFlag.Profile, commonFlag.ProfileStore,
			)
		}

		store, err := OpenStore(ctx, prof)
		if err != nil {
			return fmt.Errorf("%w: failed to open the metadata store", err)
		}
		defer store.Close()

		registry, err := NewTransferRegistry(prof)
		if err != nil {
			return err
		}

		return task(ctx, logger, store, registry, cl, params)
	})
}

// OpenStore connects the metadata store the profile points at.
func OpenStore(ctx context.Context, prof *profiles.Profile) (metadb.MetadataInterface, error) {
	if dsn := prof.Store.Postgres; dsn != "" {
		pgpool, err := pgxpool.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pgmeta.New(kpool.Wrap(pgpool)), nil
	}
	return sqlitemeta.Open(prof.Store.SQLite)
}

// NewTransferRegistry builds the artifact Fetcher registry for the
// profile. Local files are always supported; s3 only when configured.
func NewTransferRegistry(prof *profiles.Profile) (*transfer.Registry, error) {
	registry := transfer.NewRegistry(local.New())

	if prof.S3 != nil {
		fetcher, err := s3.New(s3.Config{
			Endpoint:  prof.S3.Endpoint,
			AccessKey: prof.S3.AccessKey,
			SecretKey: prof.S3.SecretKey,
			Region:    prof.S3.Region,
			UseSSL:    prof.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to setup s3 client", err)
		}
		registry.Register("s3", fetcher)
	}

	return registry, nil
}
