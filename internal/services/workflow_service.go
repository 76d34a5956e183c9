// Package services implements the workflow lifecycle coordinator: it
// orchestrates state transitions, enforces the state machine invariants,
// writes audit history atomically with each transition and triggers the
// live stream and notification side effects.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/collabflow/collabflow/internal/logging"
	"github.com/collabflow/collabflow/internal/notify"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/internal/stream"
	"github.com/collabflow/collabflow/pkg/models"
)

const (
	// excerptLen bounds the notification content excerpt.
	excerptLen = 140

	readRetryInterval = 100 * time.Millisecond
	readRetryMax      = 2
)

// StatusUpdate is the payload of a status_update stream event.
type StatusUpdate struct {
	WorkflowID string                `json:"workflow_id"`
	Status     models.WorkflowStatus `json:"status"`
	By         string                `json:"by"`
	At         time.Time             `json:"at"`
}

// ParticipantChange is the payload of participant_joined/participant_left
// stream events.
type ParticipantChange struct {
	WorkflowID string `json:"workflow_id"`
	UserID     string `json:"user_id"`
}

// BulkPurgeFailure reports why one workflow in a bulk purge was skipped.
type BulkPurgeFailure struct {
	WorkflowID string `json:"workflow_id"`
	Reason     string `json:"reason"`
}

// BulkPurgeResult partitions a bulk purge into succeeded and failed
// identities. A failure on one identity never aborts the others.
type BulkPurgeResult struct {
	Purged []string           `json:"purged"`
	Failed []BulkPurgeFailure `json:"failed"`
}

// WorkflowService coordinates the workflow lifecycle, messaging and the
// real-time side effects.
type WorkflowService struct {
	store       repository.Store
	media       MediaClient
	broadcaster *stream.Broadcaster
	notifier    *notify.Registry
	clock       clock.PassiveClock
	logger      *logging.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	store repository.Store,
	media MediaClient,
	broadcaster *stream.Broadcaster,
	notifier *notify.Registry,
	clk clock.PassiveClock,
	logger *logging.Logger,
) *WorkflowService {
	return &WorkflowService{
		store:       store,
		media:       media,
		broadcaster: broadcaster,
		notifier:    notifier,
		clock:       clk,
		logger:      logger,
	}
}

// classify translates store failures into the service error taxonomy.
// Anything that is not already a taxonomy error counts as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		repository.ErrNotFound,
		repository.ErrInvalidTransition,
		repository.ErrWorkflowClosed,
		repository.ErrNotParticipant,
		repository.ErrTransient,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", repository.ErrTransient, err)
}

// retryRead retries an idempotent read a small number of times with a
// fixed backoff. Writes are never retried here: a transition is not
// idempotent.
func retryRead(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if classified := classify(err); !errors.Is(classified, repository.ErrTransient) {
			return backoff.Permanent(classified)
		}
		return err
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(readRetryInterval), readRetryMax), ctx)
	return classify(backoff.Retry(wrapped, b))
}

func (s *WorkflowService) event(wf *models.Workflow, t models.HistoryEventType, actor string) *models.HistoryEvent {
	return &models.HistoryEvent{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		Type:       t,
		ActorID:    actor,
		Snapshot: models.WorkflowSnapshot{
			Title:       wf.Title,
			TenantID:    wf.TenantID,
			InitiatorID: wf.InitiatorID,
		},
		OccurredAt: s.clock.Now().UTC(),
	}
}

// CreateWorkflow creates an active workflow with the initiator as its
// first participant.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, tenantID, initiatorID, title string) (*models.Workflow, error) {
	now := s.clock.Now().UTC()
	wf := &models.Workflow{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		InitiatorID: initiatorID,
		Title:       title,
		Status:      models.WorkflowStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateWorkflow(ctx, wf, s.event(wf, models.HistoryEventCreated, initiatorID)); err != nil {
		return nil, classify(err)
	}
	return wf, nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var wf *models.Workflow
	err := retryRead(ctx, func() error {
		var err error
		wf, err = s.store.GetWorkflow(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// ListWorkflows returns a tenant's workflows, newest first.
func (s *WorkflowService) ListWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	var workflows []*models.Workflow
	err := retryRead(ctx, func() error {
		var err error
		workflows, err = s.store.ListWorkflows(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

// CompleteWorkflow moves an active workflow to completed, emits one final
// status_update and closes the live stream.
func (s *WorkflowService) CompleteWorkflow(ctx context.Context, id, actor string) error {
	return s.close(ctx, id, actor, models.WorkflowStatusCompleted,
		models.HistoryEventCompleted, stream.CloseCompleted)
}

// TerminateWorkflow moves an active workflow to terminated, emits one
// final status_update and closes the live stream.
func (s *WorkflowService) TerminateWorkflow(ctx context.Context, id, actor string) error {
	return s.close(ctx, id, actor, models.WorkflowStatusTerminated,
		models.HistoryEventTerminated, stream.CloseTerminated)
}

func (s *WorkflowService) close(
	ctx context.Context,
	id, actor string,
	to models.WorkflowStatus,
	eventType models.HistoryEventType,
	reason stream.CloseReason,
) error {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}

	res := models.Resolution{Kind: to, By: actor, At: s.clock.Now().UTC()}
	if err := s.store.ApplyTransition(ctx, id, res, s.event(wf, eventType, actor)); err != nil {
		return classify(err)
	}

	// Broadcasting is best-effort and never a precondition for the
	// transition; by now the new status is committed.
	s.broadcaster.Publish(ctx, id, stream.Event{Type: stream.EventStatusUpdate, Data: StatusUpdate{
		WorkflowID: id,
		Status:     to,
		By:         res.By,
		At:         res.At,
	}})
	s.broadcaster.CloseStream(ctx, id, reason)
	return nil
}

// DeleteWorkflow soft-deletes a completed or terminated workflow. The row
// is retained until an explicit purge.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, id, actor string) error {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	res := models.Resolution{Kind: models.WorkflowStatusDeleted, By: actor, At: s.clock.Now().UTC()}
	return classify(s.store.ApplyTransition(ctx, id, res, s.event(wf, models.HistoryEventDeleted, actor)))
}

// ForceCloseWorkflow is the explicit administrative composite for an
// active workflow: terminate, then soft delete. There is no direct
// active→deleted edge; both transitions appear in history.
func (s *WorkflowService) ForceCloseWorkflow(ctx context.Context, id, actor string) error {
	if err := s.TerminateWorkflow(ctx, id, actor); err != nil {
		return err
	}
	return s.DeleteWorkflow(ctx, id, actor)
}

// PurgeWorkflow irreversibly removes a soft-deleted workflow and its
// messages, participants and attachment references. Only the audit
// history remains, including the purged event's denormalized snapshot.
func (s *WorkflowService) PurgeWorkflow(ctx context.Context, id, actor string) error {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	return classify(s.store.PurgeWorkflow(ctx, id, s.event(wf, models.HistoryEventPurged, actor)))
}

// BulkPurgeWorkflows purges each identity independently and reports the
// partition of outcomes. Identities belonging to another tenant read as
// not found and land in Failed without touching the workflow.
func (s *WorkflowService) BulkPurgeWorkflows(ctx context.Context, tenantID string, ids []string, actor string) BulkPurgeResult {
	var result BulkPurgeResult
	for _, id := range ids {
		if err := s.purgeInTenant(ctx, tenantID, id, actor); err != nil {
			result.Failed = append(result.Failed, BulkPurgeFailure{WorkflowID: id, Reason: err.Error()})
			continue
		}
		result.Purged = append(result.Purged, id)
	}
	return result
}

func (s *WorkflowService) purgeInTenant(ctx context.Context, tenantID, id, actor string) error {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	if wf.TenantID != tenantID {
		return repository.ErrNotFound
	}
	return classify(s.store.PurgeWorkflow(ctx, id, s.event(wf, models.HistoryEventPurged, actor)))
}

// JoinWorkflow adds a participant to an active workflow.
func (s *WorkflowService) JoinWorkflow(ctx context.Context, workflowID, userID string, role models.ParticipantRole) error {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if !wf.Active() {
		return repository.ErrWorkflowClosed
	}
	if role == "" {
		role = models.ParticipantRoleMember
	}
	p := &models.Participant{
		WorkflowID: workflowID,
		UserID:     userID,
		Role:       role,
		JoinedAt:   s.clock.Now().UTC(),
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		return classify(err)
	}
	if err := s.store.AppendEvent(ctx, s.event(wf, models.HistoryEventUpdated, userID)); err != nil {
		s.logger.Error("failed to record participant join", "workflow_id", workflowID, "error", err)
	}
	s.broadcaster.Publish(ctx, workflowID, stream.Event{
		Type: stream.EventParticipantJoined,
		Data: ParticipantChange{WorkflowID: workflowID, UserID: userID},
	})
	return nil
}

// LeaveWorkflow removes a participant from a workflow.
func (s *WorkflowService) LeaveWorkflow(ctx context.Context, workflowID, userID string) error {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveParticipant(ctx, workflowID, userID); err != nil {
		return classify(err)
	}
	if err := s.store.AppendEvent(ctx, s.event(wf, models.HistoryEventUpdated, userID)); err != nil {
		s.logger.Error("failed to record participant leave", "workflow_id", workflowID, "error", err)
	}
	s.broadcaster.Publish(ctx, workflowID, stream.Event{
		Type: stream.EventParticipantLeft,
		Data: ParticipantChange{WorkflowID: workflowID, UserID: userID},
	})
	return nil
}

// ListParticipants returns a workflow's participants.
func (s *WorkflowService) ListParticipants(ctx context.Context, workflowID string) ([]*models.Participant, error) {
	if _, err := s.GetWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}
	var participants []*models.Participant
	err := retryRead(ctx, func() error {
		var err error
		participants, err = s.store.ListParticipants(ctx, workflowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// SendMessage appends a message to an active workflow, fans it out to
// connected viewers and queues a notification for every participant who is
// neither the sender nor currently viewing the stream. Message persistence
// succeeds independently of delivery success.
func (s *WorkflowService) SendMessage(
	ctx context.Context,
	workflowID, senderID string,
	msgType models.MessageType,
	content string,
	attachments []models.AttachmentRef,
) (*models.Message, error) {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Active() {
		return nil, repository.ErrWorkflowClosed
	}

	if _, err := s.store.GetParticipant(ctx, workflowID, senderID); err != nil {
		// The initiator may send the originating message even before a
		// participant row exists.
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, classify(err)
		}
		if senderID != wf.InitiatorID {
			return nil, repository.ErrNotParticipant
		}
	}

	for _, ref := range attachments {
		if err := s.media.ValidateAttachment(ctx, wf.TenantID, ref); err != nil {
			return nil, classify(err)
		}
	}

	if msgType == "" {
		msgType = models.MessageTypeRequest
	}
	msg := &models.Message{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		SenderID:    senderID,
		Type:        msgType,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, classify(err)
	}

	s.broadcaster.Publish(ctx, workflowID, stream.Event{Type: stream.EventMessage, Data: msg})
	s.notifyOffline(ctx, wf, msg)

	return msg, nil
}

// notifyOffline queues a notification for each participant who is not the
// sender and not currently viewing the workflow's live stream. Failures
// are logged and never fail the triggering send.
func (s *WorkflowService) notifyOffline(ctx context.Context, wf *models.Workflow, msg *models.Message) {
	participants, err := s.store.ListParticipants(ctx, wf.ID)
	if err != nil {
		s.logger.Error("failed to list participants for notification",
			"workflow_id", wf.ID, "error", err)
		return
	}
	for _, p := range participants {
		if p.UserID == msg.SenderID || s.broadcaster.Viewing(wf.ID, p.UserID) {
			continue
		}
		n := &models.Notification{
			ID:         uuid.New().String(),
			UserID:     p.UserID,
			WorkflowID: wf.ID,
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			Excerpt:    excerpt(msg.Content),
			CreatedAt:  msg.CreatedAt,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("failed to queue notification",
				"workflow_id", wf.ID, "user_id", p.UserID, "error", err)
		}
	}
}

// ListMessages returns a workflow's messages in ascending creation order,
// ties broken by insertion sequence. The read is idempotent: repeated
// calls return the same sequence.
func (s *WorkflowService) ListMessages(ctx context.Context, workflowID string) ([]*models.Message, error) {
	var messages []*models.Message
	err := retryRead(ctx, func() error {
		var err error
		messages, err = s.store.ListMessages(ctx, workflowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SubscribeStream attaches a viewer to a workflow's live stream. Only
// active workflows accept subscriptions; callers should fetch the static
// message list for anything else.
func (s *WorkflowService) SubscribeStream(ctx context.Context, workflowID, userID string) (*stream.Subscription, error) {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Active() {
		return nil, repository.ErrWorkflowClosed
	}
	sub := s.broadcaster.Subscribe(workflowID, userID)

	// A close landing between the status check and the attach would have
	// flushed the hub before this subscriber joined, so it would never see
	// the terminal event. Re-check and refuse the subscription instead.
	wf, err = s.GetWorkflow(ctx, workflowID)
	if err != nil || !wf.Active() {
		sub.Close()
		if err != nil {
			return nil, err
		}
		return nil, repository.ErrWorkflowClosed
	}
	return sub, nil
}

// History returns audit events matching the filter. History rows survive
// purge, so this works for workflows that no longer exist.
func (s *WorkflowService) History(ctx context.Context, filter repository.HistoryFilter) ([]*models.HistoryEvent, error) {
	var events []*models.HistoryEvent
	err := retryRead(ctx, func() error {
		var err error
		events, err = s.store.QueryEvents(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func excerpt(content string) string {
	if len(content) <= excerptLen {
		return content
	}
	return content[:excerptLen]
}
