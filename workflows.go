package catalog_ingest

import "github.com/google/uuid"

// ApplicationName is the task queue for catalog ingestion workflows
const ApplicationName = "catalogIngestTaskGroup"

// HostID - Use a new uuid just for demo so we can run 2 host specific activity workers on same machine.
// In real world case, you would use a hostname or ip address as HostID.
var HostID = ApplicationName + "_" + uuid.New().String()

// Workflow aliases, one per reader/store pairing.
const (
	IngestLocalCSVSQLiteWorkflowAlias string = "ingest-local-csv-sqlite-workflow-alias"
	IngestLocalCSVMongoWorkflowAlias  string = "ingest-local-csv-mongo-workflow-alias"
	IngestCloudCSVSQLiteWorkflowAlias string = "ingest-cloud-csv-sqlite-workflow-alias"
	IngestCloudCSVMongoWorkflowAlias  string = "ingest-cloud-csv-mongo-workflow-alias"
)

// Activity aliases follow the reader/store names so one worker can register
// an activity per configured backend.
const (
	FetchLocalCSVChunkAlias = "fetch-next-local-csv-source-chunk-alias"
	FetchCloudCSVChunkAlias = "fetch-next-cloud-csv-source-chunk-alias"

	ProcessSQLiteChunkAlias = "process-sqlite-catalog-store-chunk-alias"
	ProcessMongoChunkAlias  = "process-mongo-catalog-store-chunk-alias"
)
