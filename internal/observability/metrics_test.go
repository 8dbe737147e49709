package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordDownloadStarted()
	RecordDownloadFinished("complete")
	RecordDownloadFinished("failed")
	RecordAsyncError()
	RecordSolve(12 * time.Millisecond)
	RecordLaunch("dry-run")
}
