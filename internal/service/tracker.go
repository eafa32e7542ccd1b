// Package service is the tracking facade: it combines the extraction engine,
// the geocoder and the persistent documents into the results the chat layer
// delivers.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/geo"
	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/tracking"
)

// Tracker executes container and contract checks on behalf of subscribers.
type Tracker struct {
	engine tracking.Extractor
	geo    tracking.Geocoder
	stores Stores
	log    *zap.Logger
}

// NewTracker wires the facade.
func NewTracker(engine tracking.Extractor, geocoder tracking.Geocoder, stores Stores, log *zap.Logger) *Tracker {
	return &Tracker{engine: engine, geo: geocoder, stores: stores, log: log}
}

// TrackContainer looks up a container, enriches the status with distance to
// the subscriber's destination city when both ends geocode, records the
// search, and renders the chat message. Extraction failures are returned as
// errors; callers render them with UserMessage.
func (t *Tracker) TrackContainer(ctx context.Context, subscriber int64, id string) (tracking.Result, error) {
	started := time.Now()
	metrics.TrackRequests.Inc()
	defer func() {
		metrics.TrackDuration.Observe(time.Since(started).Seconds())
	}()

	status, err := t.engine.LookupContainer(ctx, id)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("container").Inc()
		return tracking.Result{}, fmt.Errorf("looking up container %s: %w", id, err)
	}

	if err := recordHistory(t.stores.History, subscriber, id); err != nil {
		// History is a convenience; the status is still worth delivering.
		t.log.Warn("recording search history failed", zap.Error(err))
	}

	result := tracking.Result{
		Target: tracking.Target{Kind: tracking.KindContainer, ID: id},
		Status: &status,
		Actions: []tracking.Action{
			{Kind: tracking.ActionAddToSchedule, Target: tracking.Target{Kind: tracking.KindContainer, ID: id}},
		},
	}

	city := t.destinationCity(subscriber)
	coords, distance := t.enrich(ctx, status, city)
	result.Coords = coords
	result.DistanceKm = distance
	if coords != nil {
		result.Actions = append([]tracking.Action{
			{Kind: tracking.ActionShowOnMap, Target: result.Target},
		}, result.Actions...)
	}
	result.Message = formatContainerMessage(status, city, distance)

	t.log.Info("container tracked",
		zap.Int64("subscriber", subscriber),
		zap.String("container", id),
		zap.String("location", status.Location),
		zap.Bool("geocoded", coords != nil))
	return result, nil
}

// CheckContract looks up a contract. A backend answer with no data is not an
// error: the result carries the not-found message. When the contract has
// shipped in a container, the derived link is persisted and track/schedule
// actions for that container are attached.
func (t *Tracker) CheckContract(ctx context.Context, subscriber int64, number string) (tracking.Result, error) {
	started := time.Now()
	metrics.TrackRequests.Inc()
	defer func() {
		metrics.TrackDuration.Observe(time.Since(started).Seconds())
	}()

	payload, err := t.engine.LookupContract(ctx, number)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("contract").Inc()
		return tracking.Result{}, fmt.Errorf("looking up contract %s: %w", number, err)
	}

	if err := recordHistory(t.stores.ContractHistory, subscriber, number); err != nil {
		t.log.Warn("recording contract history failed", zap.Error(err))
	}

	result := tracking.Result{
		Target: tracking.Target{Kind: tracking.KindContract, ID: number},
	}
	record := payload.Record()
	if record == nil {
		result.Message = msgContractNotFound
		t.log.Info("contract has no data yet",
			zap.Int64("subscriber", subscriber),
			zap.String("contract", number))
		return result, nil
	}

	result.Contract = record
	result.Message = formatContractMessage(number, *record)

	if record.HasContainer() {
		if err := t.persistLink(subscriber, number, *record); err != nil {
			t.log.Warn("persisting contract link failed", zap.Error(err))
		}
		containerTarget := tracking.Target{Kind: tracking.KindContainer, ID: record.ContainerNumber}
		result.Actions = []tracking.Action{
			{Kind: tracking.ActionTrackTarget, Target: containerTarget},
			{Kind: tracking.ActionAddToSchedule, Target: containerTarget},
		}
	} else {
		// No container assigned yet: offer recurring checks on the
		// contract itself so the subscriber learns when it ships.
		result.Actions = []tracking.Action{
			{Kind: tracking.ActionAddToSchedule, Target: result.Target},
		}
	}

	t.log.Info("contract checked",
		zap.Int64("subscriber", subscriber),
		zap.String("contract", number),
		zap.Bool("has_container", record.HasContainer()))
	return result, nil
}

// Check dispatches on the target kind. Scheduled runs use this entry point.
func (t *Tracker) Check(ctx context.Context, subscriber int64, target tracking.Target) (tracking.Result, error) {
	switch target.Kind {
	case tracking.KindContainer:
		return t.TrackContainer(ctx, subscriber, target.ID)
	case tracking.KindContract:
		return t.CheckContract(ctx, subscriber, target.ID)
	default:
		return tracking.Result{}, fmt.Errorf("unknown target kind %q", target.Kind)
	}
}

// SetDestinationCity stores the subscriber's city for distance rendering.
func (t *Tracker) SetDestinationCity(subscriber int64, city string) error {
	return t.stores.Cities.Mutate(func(m map[string]string) error {
		m[subscriberKey(subscriber)] = city
		return nil
	})
}

// ContractLinks returns the subscriber's derived contract-to-container
// mappings.
func (t *Tracker) ContractLinks(subscriber int64) (map[string]tracking.ContractLink, error) {
	links, ok, err := t.stores.Links.Get(subscriberKey(subscriber))
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]tracking.ContractLink{}, nil
	}
	return links, nil
}

func (t *Tracker) destinationCity(subscriber int64) string {
	city, ok, err := t.stores.Cities.Get(subscriberKey(subscriber))
	if err != nil || !ok || city == "" {
		return DefaultCity
	}
	return city
}

// enrich geocodes the reported location and the destination city. Either
// side failing to geocode is a soft miss: the status still goes out, just
// without coordinates or distance.
func (t *Tracker) enrich(ctx context.Context, status tracking.ContainerStatus, city string) (*tracking.Coords, *float64) {
	if tracking.IsPlaceholder(status.Location) {
		return nil, nil
	}
	loc, ok, err := t.geo.Resolve(ctx, status.Location, status.Country)
	if err != nil || !ok {
		if err != nil {
			t.log.Warn("geocoding location failed", zap.String("place", status.Location), zap.Error(err))
		}
		return nil, nil
	}
	dest, ok, err := t.geo.Resolve(ctx, city, "")
	if err != nil || !ok {
		if err != nil {
			t.log.Warn("geocoding destination failed", zap.String("city", city), zap.Error(err))
		}
		return &loc, nil
	}
	d := geo.Distance(loc, dest)
	return &loc, &d
}

func (t *Tracker) persistLink(subscriber int64, number string, r tracking.ContractRecord) error {
	return t.stores.Links.Mutate(func(m map[string]map[string]tracking.ContractLink) error {
		key := subscriberKey(subscriber)
		if m[key] == nil {
			m[key] = make(map[string]tracking.ContractLink)
		}
		m[key][number] = tracking.ContractLink{
			ContractNumber:  number,
			ContainerNumber: r.ContainerNumber,
			ShippedAt:       r.ShippedAt,
			VehicleModel:    r.VehicleModel,
			VIN:             r.VIN,
			DeliveryPoint:   r.DeliveryPoint,
		}
		return nil
	})
}
