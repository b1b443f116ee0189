package models

import (
	"time"
)

// FlowVariant selects the public or private bridging path.
type FlowVariant string

const (
	FlowVariantPublic  FlowVariant = "public"
	FlowVariantPrivate FlowVariant = "private"
)

// FlowStatus tracks a bridge flow through the cross-layer state machine.
// States advance monotonically; a failed flow keeps its last good state in
// Status and records the failure separately.
type FlowStatus string

const (
	FlowStatusMinted                FlowStatus = "minted"
	FlowStatusEscrowed              FlowStatus = "escrowed"
	FlowStatusMessageSent           FlowStatus = "message_sent"
	FlowStatusAwaitingConsumability FlowStatus = "awaiting_consumability"
	FlowStatusClaimedOnL2           FlowStatus = "claimed_on_l2"
	FlowStatusRedeemed              FlowStatus = "redeemed" // private path only
	FlowStatusAuthorizedBurn        FlowStatus = "authorized_burn"
	FlowStatusBurned                FlowStatus = "burned"
	FlowStatusExitAvailable         FlowStatus = "l2_to_l1_message_available"
	FlowStatusWithdrawn             FlowStatus = "withdrawn_on_l1"
	FlowStatusFailed                FlowStatus = "failed"
)

// BridgeFlow is the persisted record of one end-to-end deposit/withdraw
// flow. A failed flow is never compensated: escrowed funds stay on L1 until
// a correct claim or an out-of-band process resolves them, and the row
// records where the flow stopped.
type BridgeFlow struct {
	ID              string      `json:"id" gorm:"primaryKey"` // UUID
	Variant         FlowVariant `json:"variant" gorm:"not null;index"`
	Status          FlowStatus  `json:"status" gorm:"not null;index"`
	Depositor       string      `json:"depositor" gorm:"not null"` // L1 address
	L2Recipient     string      `json:"l2_recipient"`              // L2 account (field element hex)
	L1Recipient     string      `json:"l1_recipient"`              // withdrawal target
	DepositAmount   string      `json:"deposit_amount" gorm:"not null"`
	WithdrawAmount  string      `json:"withdraw_amount"`
	MessageKey      string      `json:"message_key" gorm:"index"` // inbox entry key
	ExitMessageHash string      `json:"exit_message_hash"`
	ExitL2Block     uint64      `json:"exit_l2_block"`
	ErrorMsg        string      `json:"error_message" gorm:"type:text"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	CompletedAt     *time.Time  `json:"completed_at"`
}

// DepositRecord is one L1 deposit as observed by the harness.
type DepositRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FlowID     string    `json:"flow_id" gorm:"index"`
	Variant    string    `json:"variant" gorm:"not null"`
	Depositor  string    `json:"depositor" gorm:"not null;index"`
	Amount     string    `json:"amount" gorm:"not null"`
	MessageKey string    `json:"message_key" gorm:"uniqueIndex"`
	SecretHash string    `json:"secret_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// WithdrawRecord is one finalized L1 withdrawal.
type WithdrawRecord struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FlowID          string    `json:"flow_id" gorm:"index"`
	Recipient       string    `json:"recipient" gorm:"not null;index"`
	Amount          string    `json:"amount" gorm:"not null"`
	L2Block         uint64    `json:"l2_block" gorm:"uniqueIndex:idx_withdraw_slot"`
	LeafIndex       uint64    `json:"leaf_index" gorm:"uniqueIndex:idx_withdraw_slot"`
	ExitMessageHash string    `json:"exit_message_hash" gorm:"index"`
	CreatedAt       time.Time `json:"created_at"`
}
