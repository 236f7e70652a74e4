package activity

import (
	"encoding/json"
	"time"
)

// Shared status taxonomy every record kind projects onto.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
	StatusGasError  = "gas_error"
	StatusExpired   = "expired"
)

// Record kinds.
const (
	KindTransaction  = "transaction"
	KindSwap         = "swap"
	KindWardApproval = "ward_approval"
)

// Transaction is a submitted transaction as stored by whichever party
// submitted it.
type Transaction struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	TxHash        string    `json:"tx_hash"`
	Type          string    `json:"type"`
	Token         string    `json:"token"`
	Amount        *string   `json:"amount,omitempty"`
	Recipient     *string   `json:"recipient,omitempty"`
	Status        string    `json:"status"`
	AccountType   string    `json:"account_type"`
	WardAddress   *string   `json:"ward_address,omitempty"`
	Fee           *string   `json:"fee,omitempty"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SwapExecution is one swap run, linked to transactions by hash membership
// rather than by foreign key.
type SwapExecution struct {
	ExecutionID   string     `json:"execution_id"`
	WalletAddress string     `json:"wallet_address"`
	WardAddress   *string    `json:"ward_address,omitempty"`
	FromToken     string     `json:"from_token"`
	ToToken       string     `json:"to_token"`
	Amount        *string    `json:"amount,omitempty"`
	Status        string     `json:"status"`
	TxHash        string     `json:"tx_hash"`
	PrimaryTxHash string     `json:"primary_tx_hash"`
	TxHashesJSON  string     `json:"tx_hashes_json"`
	CreatedAt     time.Time  `json:"created_at"`
	Steps         []SwapStep `json:"steps,omitempty"`
}

// TxHashes returns every hash the execution touches: tx_hash,
// primary_tx_hash and each member of tx_hashes_json.
func (s SwapExecution) TxHashes() []string {
	seen := map[string]bool{}
	var hashes []string
	add := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			hashes = append(hashes, h)
		}
	}
	add(s.TxHash)
	add(s.PrimaryTxHash)
	if s.TxHashesJSON != "" {
		var members []string
		if err := json.Unmarshal([]byte(s.TxHashesJSON), &members); err == nil {
			for _, h := range members {
				add(h)
			}
		}
	}
	return hashes
}

// SwapStep is one ordered step of a swap execution.
type SwapStep struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	StepKey     string    `json:"step_key"`
	StepOrder   int       `json:"step_order"`
	Attempt     int       `json:"attempt"`
	Status      string    `json:"status"`
	TxHash      *string   `json:"tx_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WardConfig binds a ward to its guardian; used only to resolve the
// managed-wards set for fan-out.
type WardConfig struct {
	WardAddress     string `json:"ward_address"`
	GuardianAddress string `json:"guardian_address"`
	Status          string `json:"status"`
}

// Record is the derived view unifying all record kinds for presentation. It
// has no independent lifecycle and is never persisted.
type Record struct {
	Kind         string         `json:"kind"`
	ID           string         `json:"id"`
	TxHash       string         `json:"tx_hash,omitempty"`
	Action       string         `json:"action"`
	Token        string         `json:"token"`
	Amount       *string        `json:"amount,omitempty"`
	Recipient    *string        `json:"recipient,omitempty"`
	Status       string         `json:"status"`
	StatusDetail string         `json:"status_detail"`
	StatusNote   string         `json:"status_note,omitempty"`
	AccountType  string         `json:"account_type,omitempty"`
	WardAddress  *string        `json:"ward_address,omitempty"`
	Swap         *SwapExecution `json:"swap,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Feed is the paginated merged activity response.
type Feed struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}
