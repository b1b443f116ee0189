package repository

import (
	"time"

	"gorm.io/gorm"

	"tokenbridge/internal/models"
)

// BridgeFlowRepository persists flow state transitions. Implementations must
// tolerate being handed a nil *gorm.DB only via NewBridgeFlowRepository's
// caller checking first; the service layer uses a no-op repository when
// persistence is disabled.
type BridgeFlowRepository interface {
	Create(flow *models.BridgeFlow) error
	UpdateStatus(id string, status models.FlowStatus) error
	MarkCompleted(id string) error
	MarkFailed(id string, errMsg string) error
	GetByID(id string) (*models.BridgeFlow, error)
	ListByStatus(status models.FlowStatus) ([]models.BridgeFlow, error)
	RecordDeposit(record *models.DepositRecord) error
	RecordWithdrawal(record *models.WithdrawRecord) error
}

type bridgeFlowRepository struct {
	db *gorm.DB
}

func NewBridgeFlowRepository(db *gorm.DB) BridgeFlowRepository {
	return &bridgeFlowRepository{db: db}
}

func (r *bridgeFlowRepository) Create(flow *models.BridgeFlow) error {
	return r.db.Create(flow).Error
}

func (r *bridgeFlowRepository) UpdateStatus(id string, status models.FlowStatus) error {
	return r.db.Model(&models.BridgeFlow{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *bridgeFlowRepository) MarkCompleted(id string) error {
	now := time.Now()
	return r.db.Model(&models.BridgeFlow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.FlowStatusWithdrawn,
			"completed_at": &now,
		}).Error
}

func (r *bridgeFlowRepository) MarkFailed(id string, errMsg string) error {
	return r.db.Model(&models.BridgeFlow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.FlowStatusFailed,
			"error_message": errMsg,
		}).Error
}

func (r *bridgeFlowRepository) GetByID(id string) (*models.BridgeFlow, error) {
	var flow models.BridgeFlow
	if err := r.db.First(&flow, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *bridgeFlowRepository) ListByStatus(status models.FlowStatus) ([]models.BridgeFlow, error) {
	var flows []models.BridgeFlow
	if err := r.db.Where("status = ?", status).Order("created_at desc").Find(&flows).Error; err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *bridgeFlowRepository) RecordDeposit(record *models.DepositRecord) error {
	return r.db.Create(record).Error
}

func (r *bridgeFlowRepository) RecordWithdrawal(record *models.WithdrawRecord) error {
	return r.db.Create(record).Error
}

// NoopFlowRepository satisfies BridgeFlowRepository without persisting
// anything. Used when the database is not configured and in tests.
type NoopFlowRepository struct{}

func (NoopFlowRepository) Create(*models.BridgeFlow) error                    { return nil }
func (NoopFlowRepository) UpdateStatus(string, models.FlowStatus) error       { return nil }
func (NoopFlowRepository) MarkCompleted(string) error                         { return nil }
func (NoopFlowRepository) MarkFailed(string, string) error                    { return nil }
func (NoopFlowRepository) GetByID(string) (*models.BridgeFlow, error)         { return nil, gorm.ErrRecordNotFound }
func (NoopFlowRepository) ListByStatus(models.FlowStatus) ([]models.BridgeFlow, error) {
	return nil, nil
}
func (NoopFlowRepository) RecordDeposit(*models.DepositRecord) error     { return nil }
func (NoopFlowRepository) RecordWithdrawal(*models.WithdrawRecord) error { return nil }
