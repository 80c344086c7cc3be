package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/webhooks"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

const defaultTrackingBatch = 100

type ShipmentTrackingJobParams struct {
	Logger    *logger.Logger
	Shipments trackableShipments
	Events    courierEventSink
	BatchSize int
}

type trackableShipments interface {
	Trackable(ctx context.Context, limit int) ([]models.Shipment, error)
	Provider(courier string) logistics.Provider
}

type courierEventSink interface {
	CourierEvent(ctx context.Context, courier, awb, status string) (*webhooks.CourierResult, error)
}

// NewShipmentTrackingJob polls carriers for shipments that have not reached
// a terminal state and feeds changes through the courier event path.
func NewShipmentTrackingJob(params ShipmentTrackingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shipments == nil {
		return nil, fmt.Errorf("logistics service required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("courier event sink required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultTrackingBatch
	}
	return &shipmentTrackingJob{
		logg:      params.Logger,
		shipments: params.Shipments,
		events:    params.Events,
		batch:     batch,
	}, nil
}

type shipmentTrackingJob struct {
	logg      *logger.Logger
	shipments trackableShipments
	events    courierEventSink
	batch     int
}

func (j *shipmentTrackingJob) Name() string { return "shipment-tracking" }

func (j *shipmentTrackingJob) Run(ctx context.Context) error {
	shipments, err := j.shipments.Trackable(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list trackable shipments: %w", err)
	}

	var (
		errs    []error
		changed int
	)
	for _, shipment := range shipments {
		if shipment.AWB == nil {
			continue
		}
		awb := *shipment.AWB
		courier := ""
		if shipment.CourierName != nil {
			courier = *shipment.CourierName
		}
		status, err := j.shipments.Provider(courier).Track(ctx, awb)
		if err != nil {
			errs = append(errs, fmt.Errorf("track %s: %w", awb, err))
			continue
		}
		if status == shipment.Status {
			continue
		}
		if _, err := j.events.CourierEvent(ctx, courier, awb, status.String()); err != nil {
			errs = append(errs, fmt.Errorf("apply %s %s: %w", awb, status, err))
			continue
		}
		changed++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"polled":  len(shipments),
		"changed": changed,
		"failed":  len(errs),
	}), "shipment tracking complete")
	return multierr.Combine(errs...)
}
