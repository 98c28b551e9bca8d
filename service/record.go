package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"adbfleet/adb"
	"adbfleet/models"
)

// Outcomes converts a FleetResult into its API/storage form, in order.
func Outcomes(result FleetResult) []models.DeviceOutcome {
	outcomes := make([]models.DeviceOutcome, 0, result.Len())
	for _, r := range result.results {
		outcome := models.DeviceOutcome{
			Device:   r.Device,
			Stdout:   r.Stdout,
			Stderr:   r.Stderr,
			ExitCode: r.ExitCode,
		}
		if r.Err != nil {
			outcome.Error = r.Err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// NewRecord summarizes one completed dispatch.
func NewRecord(id string, cmd adb.Command, result FleetResult, at time.Time) models.DispatchRecord {
	return models.DispatchRecord{
		ID:        id,
		Command:   cmd.String(),
		Devices:   result.Devices(),
		Failed:    len(result.Failed()),
		Results:   Outcomes(result),
		Timestamp: at.Unix(),
	}
}

// RecordSink receives the summary of every completed dispatch.
type RecordSink func(ctx context.Context, rec models.DispatchRecord)

// RecordObserver returns an Observer that assigns each dispatch a fresh id
// and hands the same record to every sink.
func RecordObserver(sinks ...RecordSink) Observer {
	return func(ctx context.Context, cmd adb.Command, result FleetResult) {
		rec := NewRecord(uuid.NewString(), cmd, result, time.Now())
		for _, sink := range sinks {
			sink(ctx, rec)
		}
	}
}
