package store

import (
	"time"
)

// Gorm schema models for the SQLite backend. CRUD goes through the generic
// Row API; these structs exist so AutoMigrate can create the tables with the
// right columns and indexes. Column names with digits or acronyms carry
// explicit tags so they match the wire field names exactly.

// WardApprovalModel is the multi-party approval row.
type WardApprovalModel struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	WardAddress        string     `gorm:"column:ward_address;index"`
	GuardianAddress    string     `gorm:"column:guardian_address;index"`
	Action             string     `gorm:"column:action"`
	Token              string     `gorm:"column:token"`
	Amount             *string    `gorm:"column:amount"`
	AmountUnit         *string    `gorm:"column:amount_unit"`
	Recipient          *string    `gorm:"column:recipient"`
	CallsJSON          string     `gorm:"column:calls_json"`
	Nonce              string     `gorm:"column:nonce"`
	ResourceBoundsJSON string     `gorm:"column:resource_bounds_json"`
	TxHash             string     `gorm:"column:tx_hash;index"`
	WardSigJSON        string     `gorm:"column:ward_sig_json"`
	Ward2FASigJSON     *string    `gorm:"column:ward_2fa_sig_json"`
	GuardianSigJSON    *string    `gorm:"column:guardian_sig_json"`
	Guardian2FASigJSON *string    `gorm:"column:guardian_2fa_sig_json"`
	NeedsWard2FA       bool       `gorm:"column:needs_ward_2fa"`
	NeedsGuardian      bool       `gorm:"column:needs_guardian"`
	NeedsGuardian2FA   bool       `gorm:"column:needs_guardian_2fa"`
	Status             string     `gorm:"column:status;index"`
	EventVersion       int64      `gorm:"column:event_version"`
	FinalTxHash        *string    `gorm:"column:final_tx_hash"`
	ErrorMessage       *string    `gorm:"column:error_message"`
	CreatedAt          time.Time  `gorm:"column:created_at;index"`
	RespondedAt        *time.Time `gorm:"column:responded_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;index"`
}

func (WardApprovalModel) TableName() string { return TableWardApprovals }

// ApprovalModel is the single-party (2FA) approval row.
type ApprovalModel struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	WalletAddress      string     `gorm:"column:wallet_address;index"`
	Action             string     `gorm:"column:action"`
	Token              string     `gorm:"column:token"`
	Amount             *string    `gorm:"column:amount"`
	Recipient          *string    `gorm:"column:recipient"`
	CallsJSON          string     `gorm:"column:calls_json"`
	SignatureJSON      string     `gorm:"column:signature_json"`
	Nonce              string     `gorm:"column:nonce"`
	ResourceBoundsJSON string     `gorm:"column:resource_bounds_json"`
	TxHash             string     `gorm:"column:tx_hash;index"`
	Status             string     `gorm:"column:status;index"`
	FinalTxHash        *string    `gorm:"column:final_tx_hash"`
	ErrorMessage       *string    `gorm:"column:error_message"`
	CreatedAt          time.Time  `gorm:"column:created_at;index"`
	RespondedAt        *time.Time `gorm:"column:responded_at"`
}

func (ApprovalModel) TableName() string { return TableApprovals }

// TransactionModel is a submitted transaction as seen by one wallet.
type TransactionModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	WalletAddress string    `gorm:"column:wallet_address;uniqueIndex:idx_wallet_tx"`
	TxHash        string    `gorm:"column:tx_hash;uniqueIndex:idx_wallet_tx"`
	Type          string    `gorm:"column:type"`
	Token         string    `gorm:"column:token"`
	Amount        *string   `gorm:"column:amount"`
	Recipient     *string   `gorm:"column:recipient"`
	Status        string    `gorm:"column:status;index"`
	AccountType   string    `gorm:"column:account_type;index"`
	WardAddress   *string   `gorm:"column:ward_address;index"`
	Fee           *string   `gorm:"column:fee"`
	ErrorMessage  *string   `gorm:"column:error_message"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`
}

func (TransactionModel) TableName() string { return TableTransactions }

// SwapExecutionModel is one swap run, linked to transactions by hash membership.
type SwapExecutionModel struct {
	ExecutionID   string    `gorm:"column:execution_id;primaryKey"`
	WalletAddress string    `gorm:"column:wallet_address;index"`
	WardAddress   *string   `gorm:"column:ward_address;index"`
	FromToken     string    `gorm:"column:from_token"`
	ToToken       string    `gorm:"column:to_token"`
	Amount        *string   `gorm:"column:amount"`
	Status        string    `gorm:"column:status;index"`
	TxHash        string    `gorm:"column:tx_hash;index"`
	PrimaryTxHash string    `gorm:"column:primary_tx_hash;index"`
	TxHashesJSON  string    `gorm:"column:tx_hashes_json"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`
}

func (SwapExecutionModel) TableName() string { return TableSwapExecutions }

// SwapStepModel is one ordered step of a swap execution.
type SwapStepModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ExecutionID string    `gorm:"column:execution_id;index"`
	StepKey     string    `gorm:"column:step_key"`
	StepOrder   int       `gorm:"column:step_order"`
	Attempt     int       `gorm:"column:attempt"`
	Status      string    `gorm:"column:status"`
	TxHash      *string   `gorm:"column:tx_hash"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (SwapStepModel) TableName() string { return TableSwapSteps }

// WardConfigModel binds a ward to its guardian.
type WardConfigModel struct {
	WardAddress     string    `gorm:"column:ward_address;primaryKey"`
	GuardianAddress string    `gorm:"column:guardian_address;index"`
	Status          string    `gorm:"column:status;index"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (WardConfigModel) TableName() string { return TableWardConfigs }

// OutboxEventModel is a durable notification event awaiting dispatch.
type OutboxEventModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	EventType       string     `gorm:"column:event_type;index"`
	RequestID       string     `gorm:"column:request_id;index"`
	PrevStatus      *string    `gorm:"column:prev_status"`
	NewStatus       string     `gorm:"column:new_status"`
	WardAddress     string     `gorm:"column:ward_address"`
	GuardianAddress string     `gorm:"column:guardian_address"`
	Action          string     `gorm:"column:action"`
	Token           string     `gorm:"column:token"`
	Amount          *string    `gorm:"column:amount"`
	EventVersion    int64      `gorm:"column:event_version"`
	Dispatched      bool       `gorm:"column:dispatched;index"`
	DispatchedAt    *time.Time `gorm:"column:dispatched_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;index"`
}

func (OutboxEventModel) TableName() string { return TableOutboxEvents }

// OutboxDeadLetterModel holds an event whose delivery failed.
type OutboxDeadLetterModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	EventType       string    `gorm:"column:event_type"`
	RequestID       string    `gorm:"column:request_id;index"`
	PrevStatus      *string   `gorm:"column:prev_status"`
	NewStatus       string    `gorm:"column:new_status"`
	WardAddress     string    `gorm:"column:ward_address"`
	GuardianAddress string    `gorm:"column:guardian_address"`
	Action          string    `gorm:"column:action"`
	Token           string    `gorm:"column:token"`
	Amount          *string   `gorm:"column:amount"`
	EventVersion    int64     `gorm:"column:event_version"`
	FailureReason   string    `gorm:"column:failure_reason"`
	FailedAt        time.Time `gorm:"column:failed_at"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (OutboxDeadLetterModel) TableName() string { return TableOutboxDeadLetters }

// schemaModels lists the structs auto-migrated by the SQLite backend.
var schemaModels = []any{
	&WardApprovalModel{},
	&ApprovalModel{},
	&TransactionModel{},
	&SwapExecutionModel{},
	&SwapStepModel{},
	&WardConfigModel{},
	&OutboxEventModel{},
	&OutboxDeadLetterModel{},
}
