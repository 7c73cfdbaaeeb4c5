package catalog_ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/comfforts/logger"

	ci "github.com/localmart/catalog-ingest"
	"github.com/localmart/catalog-ingest/internal/sources"
	"github.com/localmart/catalog-ingest/internal/stores/sqlite"
)

type LocalCSVSQLiteIngestionRequest = ci.IngestionRequest[sources.LocalCSVConfig, sqlite.Config]

const workflowTestFeed = "shop,address,title,description,discount,start_date,end_date,category\n" +
	"Corner Cafe,12 High St,Breakfast Deal,Two for one,20,01/09/2025,30/09/2025,Food\n" +
	"Corner Cafe,12 High St,Lunch Deal,Free drink,,01/09/2025,30/09/2025,Food\n" +
	"Book Nook,3 Mill Ln,Summer Sale,Half price,10,15/08/2025,31/08/2025,Books\n" +
	"Book Nook,3 Mill Ln,Bad Deal,Broken date,10,31/02/2025,31/03/2025,Books\n"

type IngestCatalogWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment
}

func TestIngestCatalogWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(IngestCatalogWorkflowTestSuite))
}

func (s *IngestCatalogWorkflowTestSuite) SetupTest() {
	l := logger.GetSlogLogger()
	s.SetLogger(l)

	ctx := logger.WithLogger(context.Background(), l)

	s.env = s.NewTestWorkflowEnvironment()
	s.env.SetWorkerOptions(worker.Options{
		BackgroundActivityContext: ctx,
	})
	s.env.SetTestTimeout(time.Minute)

	s.env.RegisterWorkflowWithOptions(
		ci.IngestCatalogWorkflow[sources.LocalCSVConfig, sqlite.Config],
		workflow.RegisterOptions{
			Name: ci.IngestLocalCSVSQLiteWorkflowAlias,
		},
	)
	s.env.RegisterActivityWithOptions(
		ci.FetchNextChunkActivity[sources.LocalCSVConfig],
		activity.RegisterOptions{
			Name: ci.FetchLocalCSVChunkAlias,
		},
	)
	s.env.RegisterActivityWithOptions(
		ci.ProcessChunkActivity[sqlite.Config],
		activity.RegisterOptions{
			Name: ci.ProcessSQLiteChunkAlias,
		},
	)
}

func (s *IngestCatalogWorkflowTestSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func (s *IngestCatalogWorkflowTestSuite) writeFeed(content string) string {
	s.T().Helper()
	path := filepath.Join(s.T().TempDir(), "feed.csv")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *IngestCatalogWorkflowTestSuite) Test_IngestCatalogWorkflow_LocalCSV_SQLite_HappyPath() {
	feedPath := s.writeFeed(workflowTestFeed)
	dbFile := filepath.Join(s.T().TempDir(), "catalog.db")

	jobID := "local-csv-sqlite-happy"
	req := &LocalCSVSQLiteIngestionRequest{
		JobID:  jobID,
		Reader: sources.LocalCSVConfig{Path: feedPath},
		Store:  sqlite.Config{DBFile: dbFile},
	}
	defer ci.ReleaseRunResources(context.Background(), jobID)

	s.env.ExecuteWorkflow(ci.IngestLocalCSVSQLiteWorkflowAlias, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result LocalCSVSQLiteIngestionRequest
	s.NoError(s.env.GetWorkflowResult(&result))
	s.True(result.Done)
	s.Equal(2, result.Report.MerchantsCreated)
	s.Equal(3, result.Report.OffersCreated)
	s.Equal(1, result.Report.RowsFailed)
	s.Require().Len(result.Report.Errors, 1)
	s.Equal(3, result.Report.Errors[0].RowIndex)

	// rows landed in the store
	store, err := sqlite.NewCatalogStore(dbFile)
	s.Require().NoError(err)
	defer store.Close(context.Background())

	merchants, err := store.ListMerchants(context.Background(), 0, 10)
	s.NoError(err)
	s.Len(merchants, 2)

	offers, err := store.ListOffers(context.Background(), 0, 10)
	s.NoError(err)
	s.Len(offers, 3)
}

func (s *IngestCatalogWorkflowTestSuite) Test_IngestCatalogWorkflow_SmallChunks_SameOutcome() {
	feedPath := s.writeFeed(workflowTestFeed)
	dbFile := filepath.Join(s.T().TempDir(), "catalog.db")

	jobID := "local-csv-sqlite-small-chunks"
	req := &LocalCSVSQLiteIngestionRequest{
		JobID:      jobID,
		ChunkSize:  1,
		ChunkBytes: 96,
		Reader:     sources.LocalCSVConfig{Path: feedPath},
		Store:      sqlite.Config{DBFile: dbFile},
	}
	defer ci.ReleaseRunResources(context.Background(), jobID)

	s.env.ExecuteWorkflow(ci.IngestLocalCSVSQLiteWorkflowAlias, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result LocalCSVSQLiteIngestionRequest
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(2, result.Report.MerchantsCreated)
	s.Equal(3, result.Report.OffersCreated)
	s.Equal(1, result.Report.RowsFailed)
}

func (s *IngestCatalogWorkflowTestSuite) Test_IngestCatalogWorkflow_MissingFeed() {
	jobID := "local-csv-sqlite-missing-feed"
	req := &LocalCSVSQLiteIngestionRequest{
		JobID:  jobID,
		Reader: sources.LocalCSVConfig{Path: filepath.Join(s.T().TempDir(), "no-such.csv")},
		Store:  sqlite.Config{DBFile: filepath.Join(s.T().TempDir(), "catalog.db")},
	}

	s.env.ExecuteWorkflow(ci.IngestLocalCSVSQLiteWorkflowAlias, req)
	s.True(s.env.IsWorkflowCompleted())

	err := s.env.GetWorkflowError()
	s.Require().Error(err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(s.T(), err, &appErr)
	s.Equal(ci.ERR_BUILDING_CHUNK_READER, appErr.Type())
}
