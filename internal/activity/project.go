package activity

import (
	"github.com/wardline/wallet-backend/internal/ward"
)

// Human-readable notes for non-terminal ward statuses.
const (
	noteWaitingWardSig  = "Waiting for ward signature"
	noteWaitingGuardian = "Waiting for guardian approval"
)

func transactionRecord(tx Transaction) Record {
	status := StatusPending
	switch tx.Status {
	case StatusConfirmed:
		status = StatusConfirmed
	case StatusFailed:
		status = StatusFailed
	}
	return Record{
		Kind:         KindTransaction,
		ID:           tx.ID,
		TxHash:       tx.TxHash,
		Action:       tx.Type,
		Token:        tx.Token,
		Amount:       tx.Amount,
		Recipient:    tx.Recipient,
		Status:       status,
		StatusDetail: tx.Status,
		AccountType:  tx.AccountType,
		WardAddress:  tx.WardAddress,
		CreatedAt:    tx.CreatedAt,
	}
}

func swapRecord(sw SwapExecution) Record {
	status := StatusPending
	switch sw.Status {
	case "completed", StatusConfirmed:
		status = StatusConfirmed
	case StatusFailed:
		status = StatusFailed
	}
	swap := sw
	return Record{
		Kind:         KindSwap,
		ID:           sw.ExecutionID,
		TxHash:       sw.PrimaryTxHash,
		Action:       "swap",
		Token:        sw.FromToken,
		Amount:       sw.Amount,
		Status:       status,
		StatusDetail: sw.Status,
		WardAddress:  sw.WardAddress,
		Swap:         &swap,
		CreatedAt:    sw.CreatedAt,
	}
}

func wardApprovalRecord(a ward.Approval) Record {
	var status, note string
	switch a.Status {
	case ward.StatusApproved:
		status = StatusConfirmed
	case ward.StatusRejected:
		status = StatusRejected
	case ward.StatusGasError:
		status = StatusGasError
	case ward.StatusFailed:
		status = StatusFailed
	case ward.StatusExpired:
		status = StatusExpired
	case ward.StatusPendingGuardian:
		status = StatusPending
		note = noteWaitingGuardian
	default:
		status = StatusPending
		note = noteWaitingWardSig
	}

	hash := a.TxHash
	if a.FinalTxHash != nil && *a.FinalTxHash != "" {
		hash = *a.FinalTxHash
	}
	wardAddr := a.WardAddress

	return Record{
		Kind:         KindWardApproval,
		ID:           a.ID,
		TxHash:       hash,
		Action:       a.Action,
		Token:        a.Token,
		Amount:       a.Amount,
		Recipient:    a.Recipient,
		Status:       status,
		StatusDetail: string(a.Status),
		StatusNote:   note,
		AccountType:  "ward",
		WardAddress:  &wardAddr,
		CreatedAt:    a.CreatedAt,
	}
}
