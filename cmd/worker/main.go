package main

import (
	"context"
	"flag"
	"log"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/comfforts/logger"

	ci "github.com/localmart/catalog-ingest"
	"github.com/localmart/catalog-ingest/internal/sources"
	"github.com/localmart/catalog-ingest/internal/stores/mongodb"
	"github.com/localmart/catalog-ingest/internal/stores/sqlite"
)

func main() {
	hostPort := flag.String("temporal", client.DefaultHostPort, "Temporal server host:port")
	flag.Parse()

	l := logger.GetSlogLogger()
	ctx := logger.WithLogger(context.Background(), l)

	c, err := client.Dial(client.Options{
		HostPort: *hostPort,
	})
	if err != nil {
		log.Fatalf("Failed to connect to temporal server: %v", err)
	}
	defer c.Close()

	w := worker.New(c, ci.ApplicationName, worker.Options{
		BackgroundActivityContext: ctx,
	})

	// workflows, one per reader/store pairing
	w.RegisterWorkflowWithOptions(
		ci.IngestCatalogWorkflow[sources.LocalCSVConfig, sqlite.Config],
		workflow.RegisterOptions{Name: ci.IngestLocalCSVSQLiteWorkflowAlias},
	)
	w.RegisterWorkflowWithOptions(
		ci.IngestCatalogWorkflow[sources.LocalCSVConfig, mongodb.Config],
		workflow.RegisterOptions{Name: ci.IngestLocalCSVMongoWorkflowAlias},
	)
	w.RegisterWorkflowWithOptions(
		ci.IngestCatalogWorkflow[sources.CloudCSVConfig, sqlite.Config],
		workflow.RegisterOptions{Name: ci.IngestCloudCSVSQLiteWorkflowAlias},
	)
	w.RegisterWorkflowWithOptions(
		ci.IngestCatalogWorkflow[sources.CloudCSVConfig, mongodb.Config],
		workflow.RegisterOptions{Name: ci.IngestCloudCSVMongoWorkflowAlias},
	)

	// fetch activities, one per reader
	w.RegisterActivityWithOptions(
		ci.FetchNextChunkActivity[sources.LocalCSVConfig],
		activity.RegisterOptions{Name: ci.FetchLocalCSVChunkAlias},
	)
	w.RegisterActivityWithOptions(
		ci.FetchNextChunkActivity[sources.CloudCSVConfig],
		activity.RegisterOptions{Name: ci.FetchCloudCSVChunkAlias},
	)

	// process activities, one per store
	w.RegisterActivityWithOptions(
		ci.ProcessChunkActivity[sqlite.Config],
		activity.RegisterOptions{Name: ci.ProcessSQLiteChunkAlias},
	)
	w.RegisterActivityWithOptions(
		ci.ProcessChunkActivity[mongodb.Config],
		activity.RegisterOptions{Name: ci.ProcessMongoChunkAlias},
	)

	l.Info("catalog ingest worker starting", "task-queue", ci.ApplicationName, "host-id", ci.HostID)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
