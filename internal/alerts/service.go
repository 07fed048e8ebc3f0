package alerts

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/pkg/db"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/wsfanout"
)

// ListLimit caps how many alerts the dashboard list and snapshot return.
const ListLimit = 50

// Broadcaster pushes an envelope to connected dashboards and reports how
// many clients accepted it.
type Broadcaster interface {
	Broadcast(event enums.BroadcastTag, data any) int
}

// Service defines the alert sink operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Alert, error)
	List(ctx context.Context) ([]models.Alert, error)
	Resolve(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Clear(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) ([]wsfanout.Message, error)
}

// CreateInput carries a new alert.
type CreateInput struct {
	Type    string `json:"type" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type service struct {
	repo        Repository
	broadcaster Broadcaster
	logg        *logger.Logger
}

// NewService wires alert dependencies. The broadcaster may be nil for
// processes without a fan-out hub.
func NewService(repo Repository, broadcaster Broadcaster, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerts repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, broadcaster: broadcaster, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Alert, error) {
	alertType := strings.TrimSpace(input.Type)
	message := strings.TrimSpace(input.Message)
	if alertType == "" || message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Type and message are required")
	}

	alert := &models.Alert{
		Type:    enums.AlertType(alertType),
		Message: message,
		Status:  enums.AlertStatusPending,
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create alert")
	}

	if s.broadcast(enums.BroadcastNewAlert, alert) > 0 {
		if err := s.repo.UpdateStatus(ctx, alert.ID, enums.AlertStatusSent); err != nil {
			s.logg.Error(ctx, "failed to mark alert sent", err)
		} else {
			alert.Status = enums.AlertStatusSent
		}
	}
	return alert, nil
}

func (s *service) List(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.repo.ListRecent(ctx, ListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list alerts")
	}
	if rows == nil {
		rows = []models.Alert{}
	}
	return rows, nil
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	alert, err := s.repo.Resolve(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Alert not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "resolve alert")
	}
	s.broadcast(enums.BroadcastUpdateAlert, alert)
	return alert, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete alert")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Alert not found")
	}
	s.broadcast(enums.BroadcastDeleteAlert, map[string]string{"id": id.String()})
	return nil
}

func (s *service) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clear alerts")
	}
	s.broadcast(enums.BroadcastClearAlerts, map[string]int64{"deleted": n})
	return n, nil
}

// Snapshot is the resync payload for newly connected dashboards.
func (s *service) Snapshot(ctx context.Context) ([]wsfanout.Message, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return []wsfanout.Message{{Event: enums.BroadcastAlertsSnapshot, Data: rows}}, nil
}

func (s *service) broadcast(event enums.BroadcastTag, data any) int {
	if s.broadcaster == nil {
		return 0
	}
	return s.broadcaster.Broadcast(event, data)
}
