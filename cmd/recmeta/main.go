package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/common"
	subinit "github.com/recmeta/recmeta/cmd/recmeta/subcommands/init"
	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/logger"
	subrecord "github.com/recmeta/recmeta/cmd/recmeta/subcommands/record"
	subruns "github.com/recmeta/recmeta/cmd/recmeta/subcommands/runs"
	subver "github.com/recmeta/recmeta/cmd/recmeta/subcommands/version"
	"github.com/recmeta/recmeta/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	record := try.To(subrecord.New()).OrFatal(logger)
	runs := try.To(subruns.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	recmeta := try.To(
		flarc.NewCommandGroup(
			"Record pipeline run outputs from a ML metadata store",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("record", record),
			flarc.WithSubcommand("runs", runs),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, recmeta, flarc.WithHelp(true)))
}
