package runs

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/youta-t/flarc"

	"github.com/recmeta/recmeta/cmd/recmeta/subcommands/common"
	"github.com/recmeta/recmeta/pkg/domain"
	metadb "github.com/recmeta/recmeta/pkg/domain/metadata/db"
	"github.com/recmeta/recmeta/pkg/transfer"
	"github.com/recmeta/recmeta/pkg/utils/slices"
)

type Flags struct {
	Pipeline string `flag:"pipeline" alias:"p" metavar:"NAME" help:"Show runs of this pipeline only."`
}

// Summary of one pipeline run found in the metadata store.
type Summary struct {
	RunId      string    `json:"runId"`
	Executions int       `json:"executions"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List pipeline runs recorded in the metadata store.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
List run ids found in the metadata store, with the number of executions
recorded per run. Use these ids with "recmeta record --run".
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
		executions, err := store.ListExecutions(ctx)
		if err != nil {
			return err
		}

		if pipeline := cl.Flags().Pipeline; pipeline != "" {
			contexts, err := store.ContextsOfType(ctx, domain.ContextTypePipelineRun)
			if err != nil {
				return err
			}
			inPipeline := map[int]struct{}{}
			for _, c := range contexts {
				if c.PipelineName() != pipeline {
					continue
				}
				members, err := store.ExecutionsInContext(ctx, c.Id)
				if err != nil {
					return err
				}
				for _, e := range members {
					inPipeline[e.Id] = struct{}{}
				}
			}
			executions = slices.Filter(executions, func(e domain.Execution) bool {
				_, ok := inPipeline[e.Id]
				return ok
			})
		}

		byRunId := slices.ToMultiMap(executions, func(e domain.Execution) (string, domain.Execution) {
			return e.RunId(), e
		})

		summaries := []Summary{}
		for runId, execs := range byRunId {
			if runId == "" {
				logger.Printf(
					"[WARN] %d executions have no run_id property. they are not listed.",
					len(execs),
				)
				continue
			}
			s := Summary{RunId: runId, Executions: len(execs)}
			for _, e := range execs {
				if s.UpdatedAt.Before(e.UpdatedAt) {
					s.UpdatedAt = e.UpdatedAt
				}
			}
			summaries = append(summaries, s)
		}
		sort.Slice(summaries, func(i, j int) bool {
			if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
				return summaries[j].UpdatedAt.Before(summaries[i].UpdatedAt)
			}
			return summaries[i].RunId < summaries[j].RunId
		})

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		if err := enc.Encode(summaries); err != nil {
			logger.Panicf("fail to dump found runs")
		}
		return nil
	}
}
