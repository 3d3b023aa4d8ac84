package service

import (
	"context"
	"fmt"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

// transitions is the fulfillment state machine. completed and cancelled are
// terminal; any pair not listed here is rejected.
var transitions = map[string][]string{
	models.StatusPaymentConfirmed: {models.StatusPendingContact, models.StatusCancelled},
	models.StatusPendingContact:   {models.StatusTeamAssigned, models.StatusCancelled},
	models.StatusTeamAssigned:     {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress:       {models.StatusCompleted, models.StatusCancelled},
}

// CanTransition reports whether the state machine accepts old -> new.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Lifecycle validates and applies fulfillment status transitions, recording
// one history entry per accepted transition.
type Lifecycle struct {
	store  Store
	logger *zap.Logger
}

func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{
		store:  store,
		logger: util.NamedLogger("lifecycle"),
	}
}

// Transition applies one accepted transition and appends its history entry.
// On success req.Status reflects the new status.
func (l *Lifecycle) Transition(ctx context.Context, req *models.ServiceRequest, to string, actorID, notes *string) error {
	ctx, span := util.StartSpan(ctx, "Lifecycle.Transition")
	defer span.End()

	if !CanTransition(req.Status, to) {
		return apperr.Validation("status",
			fmt.Sprintf("Cannot move a request from %q to %q.", req.Status, to))
	}

	applied, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (bool, error) {
		return l.store.UpdateRequestStatusFrom(ctx, req.ID, req.Status, to)
	})
	if err != nil {
		return err
	}
	if !applied {
		// a concurrent transition won; the caller's view is stale
		return apperr.Validation("status", "The request status changed; reload and try again.")
	}

	from := req.Status
	req.Status = to

	l.appendHistory(ctx, req.ID, &from, to, actorID, notes)

	l.logger.Info("Status transition applied",
		zap.Int64("service_request_id", req.ID),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}

// AssignProvider sets the provider on a request. Assigning while the request
// is pending contact advances it to team_assigned through the normal
// transition path, so history and downstream side effects fire uniformly.
func (l *Lifecycle) AssignProvider(ctx context.Context, req *models.ServiceRequest, providerID int64, actorID *string) error {
	ctx, span := util.StartSpan(ctx, "Lifecycle.AssignProvider")
	defer span.End()

	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return l.store.AssignProvider(ctx, req.ID, providerID)
	})
	if err != nil {
		return err
	}
	req.ProviderID = &providerID

	if req.Status == models.StatusPendingContact {
		note := fmt.Sprintf("Provider %d assigned", providerID)
		return l.Transition(ctx, req, models.StatusTeamAssigned, actorID, &note)
	}
	return nil
}

// appendHistory records a transition. History failures are logged, never
// propagated: the status change is already durable and redelivery would be
// blocked by the conditional update.
func (l *Lifecycle) appendHistory(ctx context.Context, requestID int64, from *string, to string, actorID, notes *string) {
	entry := &models.StatusHistoryEntry{
		ServiceRequestID: requestID,
		FromStatus:       from,
		ToStatus:         to,
		ActorID:          actorID,
		Notes:            notes,
	}
	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return l.store.AppendStatusHistory(ctx, entry)
	})
	if err != nil {
		l.logger.Error("Failed to append status history",
			zap.Int64("service_request_id", requestID),
			zap.String("to", to),
			zap.Error(err))
	}
}
