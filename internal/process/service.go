package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/models"
	"github.com/mineflow/fleet-dispatch/internal/notify"
	"github.com/mineflow/fleet-dispatch/internal/storage"
)

// Service orchestrates the truck process lifecycle: stage completion
// through the evidence policy, exception classification, driver
// assignment exclusivity and delivery proof capture. Every public
// operation is a single unit of work against the backing store; partial
// states are never observable.
type Service struct {
	processes  db.ProcessCollection
	exceptions db.ExceptionCollection
	proofs     db.ProofCollection
	users      db.UserCollection
	orders     db.OrderCollection
	engine     *Engine
	evidence   storage.EvidenceStore
	notifier   notify.Publisher
}

// NewService wires the core against its collaborators. notifier and
// evidence may be nil-equivalent (NoopPublisher, nil store) for callers
// that do not use proof upload or change events.
func NewService(
	processes db.ProcessCollection,
	exceptions db.ExceptionCollection,
	proofs db.ProofCollection,
	users db.UserCollection,
	orders db.OrderCollection,
	engine *Engine,
	evidence storage.EvidenceStore,
	notifier notify.Publisher,
) *Service {
	if notifier == nil {
		notifier = notify.NoopPublisher{}
	}
	if engine == nil {
		engine = NewEngine(processes)
	}
	return &Service{
		processes:  processes,
		exceptions: exceptions,
		proofs:     proofs,
		users:      users,
		orders:     orders,
		engine:     engine,
		evidence:   evidence,
		notifier:   notifier,
	}
}

// CreateProcessInput carries the fields needed to open a truck process.
type CreateProcessInput struct {
	TruckNo               string
	DispatchID            string
	OrderNo               string
	IsRoyalty             bool
	DriverID              string
	EstimatedDeliveryTime *time.Time
}

// CreateProcess opens a process at the gate with all six stage records
// incomplete. If a driver is supplied the assignment goes through the
// exclusivity guarantee, so the driver is released from any other
// active process.
func (s *Service) CreateProcess(ctx context.Context, in CreateProcessInput) (*models.TruckProcess, error) {
	if in.TruckNo == "" {
		return nil, fmt.Errorf("%w: truck number is required", ErrInvalidInput)
	}
	if in.DispatchID == "" {
		return nil, fmt.Errorf("%w: dispatch id is required", ErrInvalidInput)
	}

	p := models.NewTruckProcess(in.TruckNo, in.DispatchID, in.IsRoyalty)
	p.OrderNo = in.OrderNo
	p.EstimatedDeliveryTime = in.EstimatedDeliveryTime

	created, err := s.processes.InsertProcess(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("insert process: %w", err)
	}
	s.notifier.Publish("truck_processes", "insert", created.ID.Hex())

	if in.DriverID != "" {
		assigned, err := s.AssignDriver(ctx, created.ID.Hex(), in.DriverID)
		if err != nil {
			return nil, err
		}
		return assigned, nil
	}
	return created, nil
}

// GetProcess fetches a process by id.
func (s *Service) GetProcess(ctx context.Context, id string) (*models.TruckProcess, error) {
	return s.processes.FindProcessByID(ctx, id)
}

// ListProcesses queries processes through the persistence collaborator.
func (s *Service) ListProcesses(ctx context.Context, filter db.ProcessFilter) ([]models.TruckProcess, error) {
	return s.processes.FindProcesses(ctx, filter)
}

// CompleteStage validates the evidence payload against the stage policy
// and, on success, marks the stage complete, advances the stage pointer
// and recomputes the aggregate status. On a policy violation the stage
// record is left untouched, an exception is recorded and the process
// flips to exception status; the violation is returned to the caller.
func (s *Service) CompleteStage(ctx context.Context, processID string, stage models.Stage, ev Evidence) (*models.TruckProcess, error) {
	p, err := s.processes.FindProcessByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusDelivered {
		return nil, ErrTerminal
	}

	open, err := s.exceptions.OpenExceptionCount(ctx, p.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("count open exceptions: %w", err)
	}
	if open > 0 {
		return nil, ErrBlocked
	}

	if err := ValidateAdvance(p, stage); err != nil {
		// Normal UI flow never submits out of order; this indicates a
		// race or stale client state.
		log.WithFields(log.Fields{
			"process_id": p.ID.Hex(),
			"stage":      stage,
			"current":    p.CurrentStage,
		}).Warn("Out-of-sequence stage completion attempt")
		return nil, err
	}

	hasProof := false
	if stage == models.StageDelivered {
		hasProof, err = s.proofs.HasProof(ctx, p.ID.Hex())
		if err != nil {
			return nil, fmt.Errorf("check delivery proof: %w", err)
		}
	}

	if err := s.engine.Validate(ctx, p, stage, ev, hasProof); err != nil {
		violation, ok := AsPolicyError(err)
		if !ok {
			return nil, err
		}
		return nil, s.recordViolation(ctx, p, stage, violation)
	}

	now := time.Now()
	rec := p.StageRecordFor(stage)
	rec.Completed = true
	rec.Timestamp = &now
	rec.Operator = ev.Operator
	rec.VideoURL = ev.VideoURL
	rec.Media = ev.Media
	rec.Notes = ev.Notes
	if p.IsRoyalty {
		rec.RoyaltyCode = ev.RoyaltyCode
	}
	if ev.GrossWeight != nil {
		rec.GrossWeight = *ev.GrossWeight
	}
	if ev.NetWeight != nil {
		rec.NetWeight = *ev.NetWeight
	}

	if stage == models.StageDelivered && !hasProof && ev.PhotoURL != "" {
		proof := models.DeliveryProof{
			ProcessID: p.ID.Hex(),
			PhotoURL:  ev.PhotoURL,
			Timestamp: now,
			Notes:     ev.Notes,
		}
		if _, err := s.proofs.InsertProof(ctx, proof); err != nil {
			return nil, fmt.Errorf("insert delivery proof: %w", err)
		}
		s.notifier.Publish("delivery_proofs", "insert", p.ID.Hex())
		hasProof = true
	}

	advancePointer(p, stage)
	p.Status = DeriveStatus(p, 0, hasProof)
	if p.Status == models.StatusDelivered {
		p.ActualDeliveryTime = &now
	}

	if err := s.processes.UpdateProcessGuarded(ctx, p); err != nil {
		return nil, err
	}
	s.notifier.Publish("truck_processes", "update", p.ID.Hex())

	if p.Status == models.StatusDelivered {
		s.recordOrderDelivery(ctx, p)
	}
	return p, nil
}

// recordViolation classifies a policy violation, records the exception
// (folding repeats of the same issue) and flips the process status to
// exception without touching the stage pointer or records.
func (s *Service) recordViolation(ctx context.Context, p *models.TruckProcess, stage models.Stage, violation *PolicyError) error {
	exc := Classify(p, stage, violation)
	saved, err := s.exceptions.UpsertOpenException(ctx, exc)
	if err != nil {
		return fmt.Errorf("record exception: %w", err)
	}
	s.notifier.Publish("exceptions", "insert", saved.ID.Hex())

	p.Status = DeriveStatus(p, 1, false)
	if err := s.processes.UpdateProcessGuarded(ctx, p); err != nil {
		return err
	}
	s.notifier.Publish("truck_processes", "update", p.ID.Hex())
	return violation
}

// recordOrderDelivery bumps the delivered quantity on the linked order
// using the weigh-out net weight. Order bookkeeping must not fail a
// completed delivery, so errors are logged and dropped.
func (s *Service) recordOrderDelivery(ctx context.Context, p *models.TruckProcess) {
	if p.OrderNo == "" || s.orders == nil {
		return
	}
	net := 0.0
	if rec := p.StageRecordFor(models.StageWeighOut); rec != nil {
		net = rec.NetWeight
	}
	if net <= 0 {
		return
	}
	order, err := s.orders.FindOrderByNo(ctx, p.OrderNo)
	if err != nil {
		log.WithError(err).WithField("order_no", p.OrderNo).Warn("Delivered process references unknown order")
		return
	}
	order.RecordDelivery(net)
	if err := s.orders.UpdateOrder(ctx, order.ID.Hex(), *order); err != nil {
		log.WithError(err).WithField("order_no", p.OrderNo).Warn("Failed to record order delivery")
		return
	}
	s.notifier.Publish("orders", "update", order.ID.Hex())
}

// Blob is an evidence file to upload.
type Blob struct {
	Name   string
	Reader io.Reader
}

// ProofInput carries the delivery proof payload. The photo is
// mandatory.
type ProofInput struct {
	Photo    Blob
	Video    *Blob
	Notes    string
	Location *models.Location
}

// SubmitDeliveryProof uploads the proof media and records the proof. It
// does not complete the delivered stage; the caller resubmits through
// CompleteStage, which then finds the proof in place. An interrupted
// upload yields an error and no proof record, so cancelled uploads read
// as evidence absent.
func (s *Service) SubmitDeliveryProof(ctx context.Context, processID string, in ProofInput) (*models.DeliveryProof, error) {
	if in.Photo.Reader == nil {
		return nil, &PolicyError{Reason: ReasonMissingPhoto, Detail: "delivery proof requires a photo"}
	}
	if s.evidence == nil {
		return nil, errors.New("no evidence store configured")
	}

	p, err := s.processes.FindProcessByID(ctx, processID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	photoRef, err := s.evidence.Put(ctx, storage.EvidenceKey(p.ID.Hex(), models.StageDelivered, "photo-"+in.Photo.Name, now), in.Photo.Reader)
	if err != nil {
		return nil, err
	}
	videoRef := ""
	if in.Video != nil && in.Video.Reader != nil {
		videoRef, err = s.evidence.Put(ctx, storage.EvidenceKey(p.ID.Hex(), models.StageDelivered, "video-"+in.Video.Name, now), in.Video.Reader)
		if err != nil {
			return nil, err
		}
	}

	proof, err := s.proofs.InsertProof(ctx, models.DeliveryProof{
		ProcessID: p.ID.Hex(),
		PhotoURL:  photoRef,
		VideoURL:  videoRef,
		Timestamp: now,
		Location:  in.Location,
		Notes:     in.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("insert delivery proof: %w", err)
	}
	s.notifier.Publish("delivery_proofs", "insert", proof.ID.Hex())
	return proof, nil
}

// AssignDriver assigns a driver to a process, atomically releasing the
// driver from any other in-process assignment so a driver is never
// referenced by two active processes.
func (s *Service) AssignDriver(ctx context.Context, processID, driverID string) (*models.TruckProcess, error) {
	driver, err := s.users.FindUserByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Role != models.RoleDriver {
		return nil, fmt.Errorf("%w: user %s is not a driver", ErrInvalidInput, driverID)
	}

	p, err := s.processes.AssignDriver(ctx, processID, driverID)
	if err != nil {
		return nil, err
	}

	// Denormalized convenience field on the driver record; the process
	// table is the source of truth for the exclusivity invariant.
	if err := s.users.SetTruckAssigned(ctx, driverID, p.TruckNo); err != nil {
		log.WithError(err).WithField("driver_id", driverID).Warn("Failed to sync driver truck assignment")
	}
	s.notifier.Publish("truck_processes", "update", p.ID.Hex())
	return p, nil
}

// UnassignDriver clears the driver reference on a process. Idempotent.
func (s *Service) UnassignDriver(ctx context.Context, processID string) (*models.TruckProcess, error) {
	prev, err := s.processes.FindProcessByID(ctx, processID)
	if err != nil {
		return nil, err
	}

	p, err := s.processes.UnassignDriver(ctx, processID)
	if err != nil {
		return nil, err
	}
	if prev.DriverID != "" {
		if err := s.users.SetTruckAssigned(ctx, prev.DriverID, ""); err != nil {
			log.WithError(err).WithField("driver_id", prev.DriverID).Warn("Failed to clear driver truck assignment")
		}
	}
	s.notifier.Publish("truck_processes", "update", p.ID.Hex())
	return p, nil
}

// ResolveException closes an exception by operator action. It changes
// nothing but the exception itself: the process keeps its stage
// pointer, status and stage records until evidence is resubmitted
// through CompleteStage.
func (s *Service) ResolveException(ctx context.Context, exceptionID, resolvedBy string) (*models.Exception, error) {
	exc, err := s.exceptions.ResolveException(ctx, exceptionID, resolvedBy)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish("exceptions", "update", exc.ID.Hex())
	return exc, nil
}

// ListExceptions queries exception records.
func (s *Service) ListExceptions(ctx context.Context, filter db.ExceptionFilter) ([]models.Exception, error) {
	return s.exceptions.FindExceptions(ctx, filter)
}

// GetDeliveryProof returns the most recent proof for a process.
func (s *Service) GetDeliveryProof(ctx context.Context, processID string) (*models.DeliveryProof, error) {
	return s.proofs.FindProofByProcess(ctx, processID)
}

// ActiveDispatches lists a driver's dispatches still in flight
// (in-process or blocked on an exception), newest first.
func (s *Service) ActiveDispatches(ctx context.Context, driverID string) ([]models.TruckProcess, error) {
	return s.processes.FindProcesses(ctx, db.ProcessFilter{
		DriverID: driverID,
		Statuses: []models.ProcessStatus{models.StatusInProcess, models.StatusException},
	})
}

// CompletedDispatches lists a driver's delivered dispatches, optionally
// only those delivered since a given time.
func (s *Service) CompletedDispatches(ctx context.Context, driverID string, since *time.Time) ([]models.TruckProcess, error) {
	return s.processes.FindProcesses(ctx, db.ProcessFilter{
		DriverID:       driverID,
		Statuses:       []models.ProcessStatus{models.StatusDelivered},
		DeliveredSince: since,
	})
}

// DriverStats summarizes a driver's day for the driver dashboard.
type DriverStats struct {
	CompletedToday int `json:"completed_today"`
	TotalCompleted int `json:"total_completed"`
	InProgress     int `json:"in_progress"`
	Exceptions     int `json:"exceptions"`
}

// GetDriverStats computes the driver dashboard counters.
func (s *Service) GetDriverStats(ctx context.Context, driverID string) (*DriverStats, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	completedToday, err := s.CompletedDispatches(ctx, driverID, &midnight)
	if err != nil {
		return nil, err
	}
	totalCompleted, err := s.CompletedDispatches(ctx, driverID, nil)
	if err != nil {
		return nil, err
	}
	active, err := s.ActiveDispatches(ctx, driverID)
	if err != nil {
		return nil, err
	}

	stats := &DriverStats{
		CompletedToday: len(completedToday),
		TotalCompleted: len(totalCompleted),
	}
	for _, p := range active {
		switch p.Status {
		case models.StatusInProcess:
			stats.InProgress++
		case models.StatusException:
			stats.Exceptions++
		}
	}
	return stats, nil
}

// DashboardStats summarizes the fleet for the admin dashboard.
type DashboardStats struct {
	TotalProcesses     int64 `json:"total_processes"`
	ActiveProcesses    int64 `json:"active_processes"`
	DeliveredProcesses int64 `json:"delivered_processes"`
	ExceptionProcesses int64 `json:"exception_processes"`
	TotalDrivers       int64 `json:"total_drivers"`
}

// GetDashboardStats computes the admin dashboard counters.
func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	counts, err := s.processes.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	drivers, err := s.users.CountByRole(ctx, models.RoleDriver)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{
		ActiveProcesses:    counts[models.StatusInProcess],
		DeliveredProcesses: counts[models.StatusDelivered],
		ExceptionProcesses: counts[models.StatusException],
		TotalDrivers:       drivers,
	}
	stats.TotalProcesses = stats.ActiveProcesses + stats.DeliveredProcesses + stats.ExceptionProcesses
	return stats, nil
}

// RecentActivity lists the newest processes for the dashboard feed.
func (s *Service) RecentActivity(ctx context.Context, limit int64) ([]models.TruckProcess, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.processes.FindProcesses(ctx, db.ProcessFilter{Limit: limit})
}
