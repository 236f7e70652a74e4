package ward

import (
	"time"

	"github.com/wardline/wallet-backend/internal/store"
)

// Approval is a multi-party approval request: the ward signs, an optional
// guardian hop decides, and either hop may require a second-device (2FA)
// confirmation. Which hops are required is fixed at creation by the three
// needs_* flags.
type Approval struct {
	ID                 string     `json:"id"`
	WardAddress        string     `json:"ward_address"`
	GuardianAddress    string     `json:"guardian_address"`
	Action             string     `json:"action"`
	Token              string     `json:"token"`
	Amount             *string    `json:"amount"`
	AmountUnit         *string    `json:"amount_unit,omitempty"`
	Recipient          *string    `json:"recipient"`
	CallsJSON          string     `json:"calls_json"`
	Nonce              string     `json:"nonce"`
	ResourceBoundsJSON string     `json:"resource_bounds_json"`
	TxHash             string     `json:"tx_hash"`
	WardSigJSON        string     `json:"ward_sig_json"`
	Ward2FASigJSON     *string    `json:"ward_2fa_sig_json,omitempty"`
	GuardianSigJSON    *string    `json:"guardian_sig_json,omitempty"`
	Guardian2FASigJSON *string    `json:"guardian_2fa_sig_json,omitempty"`
	NeedsWard2FA       bool       `json:"needs_ward_2fa"`
	NeedsGuardian      bool       `json:"needs_guardian"`
	NeedsGuardian2FA   bool       `json:"needs_guardian_2fa"`
	Status             Status     `json:"status"`
	EventVersion       int64      `json:"event_version"`
	FinalTxHash        *string    `json:"final_tx_hash,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	RespondedAt        *time.Time `json:"responded_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CreateInput carries the POST /ward-approvals body.
type CreateInput struct {
	WardAddress        string  `json:"ward_address"`
	GuardianAddress    string  `json:"guardian_address"`
	Action             string  `json:"action"`
	Token              string  `json:"token"`
	Amount             *string `json:"amount"`
	AmountUnit         *string `json:"amount_unit"`
	Recipient          *string `json:"recipient"`
	CallsJSON          string  `json:"calls_json"`
	Nonce              string  `json:"nonce"`
	ResourceBoundsJSON string  `json:"resource_bounds_json"`
	TxHash             string  `json:"tx_hash"`
	WardSigJSON        string  `json:"ward_sig_json"`
	NeedsWard2FA       *bool   `json:"needs_ward_2fa"`
	NeedsGuardian      *bool   `json:"needs_guardian"`
	NeedsGuardian2FA   *bool   `json:"needs_guardian_2fa"`
	InitialStatus      *Status `json:"initial_status"`
}

// UpdateInput carries the PATCH /ward-approvals/:id body. Only non-nil
// fields are applied.
type UpdateInput struct {
	Status             *Status    `json:"status"`
	Nonce              *string    `json:"nonce"`
	ResourceBoundsJSON *string    `json:"resource_bounds_json"`
	TxHash             *string    `json:"tx_hash"`
	WardSigJSON        *string    `json:"ward_sig_json"`
	Ward2FASigJSON     *string    `json:"ward_2fa_sig_json"`
	GuardianSigJSON    *string    `json:"guardian_sig_json"`
	Guardian2FASigJSON *string    `json:"guardian_2fa_sig_json"`
	FinalTxHash        *string    `json:"final_tx_hash"`
	ErrorMessage       *string    `json:"error_message"`
	RespondedAt        *time.Time `json:"responded_at"`
}

// patchRow renders the non-status fields of the input as a store patch.
func (in UpdateInput) patchRow() store.Row {
	patch := store.Row{}
	put := func(col string, v *string) {
		if v != nil {
			patch[col] = *v
		}
	}
	put("nonce", in.Nonce)
	put("resource_bounds_json", in.ResourceBoundsJSON)
	put("tx_hash", in.TxHash)
	put("ward_sig_json", in.WardSigJSON)
	put("ward_2fa_sig_json", in.Ward2FASigJSON)
	put("guardian_sig_json", in.GuardianSigJSON)
	put("guardian_2fa_sig_json", in.Guardian2FASigJSON)
	put("final_tx_hash", in.FinalTxHash)
	put("error_message", in.ErrorMessage)
	return patch
}

// row renders a new approval as a store record.
func row(a Approval) store.Row {
	r := store.Row{
		"id":                   a.ID,
		"ward_address":         a.WardAddress,
		"guardian_address":     a.GuardianAddress,
		"action":               a.Action,
		"token":                a.Token,
		"calls_json":           a.CallsJSON,
		"nonce":                a.Nonce,
		"resource_bounds_json": a.ResourceBoundsJSON,
		"tx_hash":              a.TxHash,
		"ward_sig_json":        a.WardSigJSON,
		"needs_ward_2fa":       a.NeedsWard2FA,
		"needs_guardian":       a.NeedsGuardian,
		"needs_guardian_2fa":   a.NeedsGuardian2FA,
		"status":               string(a.Status),
		"event_version":        a.EventVersion,
		"created_at":           store.FormatTime(a.CreatedAt),
		"updated_at":           store.FormatTime(a.UpdatedAt),
		"responded_at":         nil,
	}
	if a.Amount != nil {
		r["amount"] = *a.Amount
	}
	if a.AmountUnit != nil {
		r["amount_unit"] = *a.AmountUnit
	}
	if a.Recipient != nil {
		r["recipient"] = *a.Recipient
	}
	return r
}
