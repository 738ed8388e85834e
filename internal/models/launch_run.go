package models

import (
	"time"
)

// LaunchRunStatus is the lifecycle state of a launch run.
type LaunchRunStatus string

const (
	LaunchRunStatusPending   LaunchRunStatus = "pending"
	LaunchRunStatusRunning   LaunchRunStatus = "running"
	LaunchRunStatusFailed    LaunchRunStatus = "failed"
	LaunchRunStatusCompleted LaunchRunStatus = "completed"
)

// LaunchRun is one launch attempt and its per-step completion markers. A
// failed run can be resumed: steps with a marker are not executed again.
type LaunchRun struct {
	ID     string          `json:"id" gorm:"primaryKey;size:36"`
	Status LaunchRunStatus `json:"status" gorm:"not null;default:pending;index"`

	// token spec
	Name        string `json:"name" gorm:"not null"`
	Symbol      string `json:"symbol" gorm:"not null;index"`
	TotalSupply string `json:"total_supply" gorm:"not null"` // base units
	Decimals    uint8  `json:"decimals"`
	MetadataURI string `json:"metadata_uri"`
	Creator     string `json:"creator" gorm:"size:42"`
	InitiatorID int64  `json:"initiator_id"`
	DeployMode  string `json:"deploy_mode" gorm:"size:16"`

	// burn plan
	LiquidityFraction string `json:"liquidity_fraction"`
	LiquidityAmount   string `json:"liquidity_amount"`
	BurnAmount        string `json:"burn_amount"`
	ReserveAmount     string `json:"reserve_amount"`

	// step markers
	TokenAddress    string `json:"token_address" gorm:"size:42;index"`
	TokenTxHash     string `json:"token_tx_hash" gorm:"size:66"`
	Burned          bool   `json:"burned"`
	BurnTxHash      string `json:"burn_tx_hash" gorm:"size:66"`
	PairAddress     string `json:"pair_address" gorm:"size:42"`
	PairCreated     bool   `json:"pair_created"`
	PairTxHash      string `json:"pair_tx_hash" gorm:"size:66"`
	ApproveTxHash   string `json:"approve_tx_hash" gorm:"size:66"`
	LiquidityTxHash string `json:"liquidity_tx_hash" gorm:"size:66"`
	Shares          string `json:"shares"`

	// failure
	FailedStep   string `json:"failed_step,omitempty"`
	FailedTxHash string `json:"failed_tx_hash,omitempty" gorm:"size:66"`
	LastError    string `json:"last_error,omitempty" gorm:"type:text"`
	Attempts     int    `json:"attempts" gorm:"default:0"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName specifies the table name
func (LaunchRun) TableName() string {
	return "launch_runs"
}

// IsTerminal reports whether the run has finished successfully.
func (r *LaunchRun) IsTerminal() bool {
	return r.Status == LaunchRunStatusCompleted
}

// ClearFailure resets the failure fields before a resume attempt.
func (r *LaunchRun) ClearFailure() {
	r.FailedStep = ""
	r.FailedTxHash = ""
	r.LastError = ""
}
