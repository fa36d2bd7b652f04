package record

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/youta-t/flarc"

	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/common"
	metadb "github.com/recmeta/recmeta/pkg/domain/metadata/db"
	"github.com/recmeta/recmeta/pkg/recorder"
	"github.com/recmeta/recmeta/pkg/transfer"
	kpath "github.com/recmeta/recmeta/pkg/utils/path"
)

type Flags struct {
	Run      string `flag:"run" alias:"r" metavar:"RUN_ID" help:"Record the run with this run id."`
	Pipeline string `flag:"pipeline" alias:"p" metavar:"NAME" help:"Record the most recent run of this pipeline."`
}

const ARG_DEST = "DEST"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Copy the output artifacts of a recorded pipeline run to a local directory.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_DEST, Required: false,
				Help: `
directory where artifacts are copied to, as "DEST/<component>/<output name>".
If the directory does not exist, it will be created.
Default: current directory ".".
`,
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Copy the output artifacts of a recorded pipeline run out of the metadata
store's file space into DEST, so that the run can be replayed or
inspected offline.

Select the run with --run (exact run id) or --pipeline (most recent run
of the pipeline). Exactly one of them is required.

Example:

Record run "2026-08-10T12:00:00.000001" into "./replay":

	{{ .Command }} --run 2026-08-10T12:00:00.000001 ./replay

Record the latest run of pipeline "taxi" into the current directory:

	{{ .Command }} --pipeline taxi
`),
	)
}

func Task() common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store metadb.MetadataInterface,
		registry *transfer.Registry,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		if (flags.Run == "") == (flags.Pipeline == "") {
			return fmt.Errorf(
				"%w: exactly one of --run and --pipeline is required",
				flarc.ErrUsage,
			)
		}

		dest := "."
		if args := cl.Args()[ARG_DEST]; 0 < len(args) {
			dest = args[0]
		}
		resolved, err := kpath.Resolve(dest)
		if err != nil {
			return fmt.Errorf("path resolving error for '%s': %w", dest, err)
		}
		dest = filepath.Clean(resolved)

		rec := recorder.New(store, registry)
		return rec.Record(ctx, logger, dest, recorder.Target{
			RunId:        flags.Run,
			PipelineName: flags.Pipeline,
		})
	}
}
