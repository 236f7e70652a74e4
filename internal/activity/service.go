// Package activity builds the unified activity feed: it fans out reads
// across the three ownership relations a wallet can hold (direct owner, ward,
// guardian of many wards), reconciles transactions, swap executions and ward
// approvals into one record shape, and returns a paginated merged feed.
package activity

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wardline/wallet-backend/internal/store"
	"github.com/wardline/wallet-backend/internal/ward"
)

// sentinel ward address excluded from the managed-wards set.
const sentinelAddress = "0x0"

const (
	// DefaultLimit and MaxLimit bound the feed page size.
	DefaultLimit = 20
	MaxLimit     = 100
)

// Service is the activity aggregator over the store adapter.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

// NewService wires the aggregator.
func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log}
}

// Feed returns the merged activity feed for a wallet. The fan-out reads are
// independent and concurrent; the feed tolerates a slightly stale union.
func (s *Service) Feed(ctx context.Context, wallet string, limit, offset int) (*Feed, error) {
	if wallet == "" {
		return nil, errors.New("wallet address required")
	}
	if limit <= 0 {
		limit = viper.GetInt("activity_default_limit")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	managedWards := s.managedWards(ctx, wallet)

	// Direct, as-ward and (where applicable) managed-wards reads per kind.
	txQueries := []store.Query{
		store.Where(store.Eq("wallet_address", wallet)),
		store.Where(store.Eq("ward_address", wallet)),
	}
	swapQueries := []store.Query{
		store.Where(store.Eq("wallet_address", wallet)),
		store.Where(store.Eq("ward_address", wallet)),
	}
	if len(managedWards) > 0 {
		txQueries = append(txQueries, store.Where(store.In("wallet_address", managedWards...)))
		swapQueries = append(swapQueries, store.Where(store.In("wallet_address", managedWards...)))
	}
	// Ward approvals carry both parties natively; no managed-wards hop needed.
	wardQueries := []store.Query{
		store.Where(store.Eq("ward_address", wallet)),
		store.Where(store.Eq("guardian_address", wallet)),
	}

	txRows := s.fanOut(ctx, store.TableTransactions, txQueries, stringKey("tx_hash"))
	swapRows := s.fanOut(ctx, store.TableSwapExecutions, swapQueries, stringKey("execution_id"))
	wardRows := s.fanOut(ctx, store.TableWardApprovals, wardQueries, stringKey("id"))

	var transactions []Transaction
	if err := store.DecodeRows(txRows, &transactions); err != nil {
		return nil, err
	}
	var swaps []SwapExecution
	if err := store.DecodeRows(swapRows, &swaps); err != nil {
		return nil, err
	}
	var approvals []ward.Approval
	if err := store.DecodeRows(wardRows, &approvals); err != nil {
		return nil, err
	}

	s.attachSteps(ctx, swaps)

	// Index swaps by every hash they touch so matching transactions absorb
	// them as enrichment instead of duplicate records.
	swapByHash := map[string]*SwapExecution{}
	for i := range swaps {
		for _, h := range swaps[i].TxHashes() {
			if _, ok := swapByHash[h]; !ok {
				swapByHash[h] = &swaps[i]
			}
		}
	}

	var records []Record
	emittedHashes := map[string]bool{}
	absorbedSwaps := map[string]bool{}

	for _, tx := range transactions {
		rec := transactionRecord(tx)
		if swap, ok := swapByHash[tx.TxHash]; ok {
			rec.Swap = swap
			absorbedSwaps[swap.ExecutionID] = true
		}
		if tx.TxHash != "" {
			emittedHashes[tx.TxHash] = true
		}
		records = append(records, rec)
	}

	for i := range swaps {
		if absorbedSwaps[swaps[i].ExecutionID] {
			continue
		}
		records = append(records, swapRecord(swaps[i]))
	}

	for _, a := range approvals {
		// The same economic event must not appear twice: an approval whose
		// transaction already made it into the feed is suppressed.
		hash := a.TxHash
		if a.FinalTxHash != nil && *a.FinalTxHash != "" {
			hash = *a.FinalTxHash
		}
		if hash != "" && emittedHashes[hash] {
			continue
		}
		records = append(records, wardApprovalRecord(a))
	}

	// Newest first; the stable sort keeps insertion order on equal timestamps.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := len(records)
	page := records[min(offset, total):min(offset+limit, total)]
	if page == nil {
		page = []Record{}
	}

	return &Feed{
		Records: page,
		Total:   total,
		HasMore: offset+limit < total,
	}, nil
}

// managedWards resolves the set of wards the wallet guards. A failed lookup
// degrades to an empty set; the rest of the feed still renders.
func (s *Service) managedWards(ctx context.Context, wallet string) []string {
	rows, err := s.store.Select(ctx, store.TableWardConfigs, store.Query{
		Filters: []store.Filter{
			store.Eq("guardian_address", wallet),
			store.Eq("status", "active"),
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("guardian", wallet).Msg("managed-wards lookup failed, degrading to empty set")
		return nil
	}

	var configs []WardConfig
	if err := store.DecodeRows(rows, &configs); err != nil {
		s.log.Warn().Err(err).Msg("managed-wards rows undecodable, degrading to empty set")
		return nil
	}

	var wards []string
	for _, c := range configs {
		if c.WardAddress == "" || c.WardAddress == sentinelAddress {
			continue
		}
		wards = append(wards, c.WardAddress)
	}
	return wards
}

// attachSteps loads and orders the steps for every collected execution.
func (s *Service) attachSteps(ctx context.Context, swaps []SwapExecution) {
	if len(swaps) == 0 {
		return
	}
	ids := make([]string, len(swaps))
	for i, sw := range swaps {
		ids[i] = sw.ExecutionID
	}

	rows, err := s.store.Select(ctx, store.TableSwapSteps, store.Query{
		Filters: []store.Filter{store.In("execution_id", ids...)},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("swap step lookup failed, emitting executions without steps")
		return
	}

	var steps []SwapStep
	if err := store.DecodeRows(rows, &steps); err != nil {
		s.log.Warn().Err(err).Msg("swap step rows undecodable, emitting executions without steps")
		return
	}

	byExecution := map[string][]SwapStep{}
	for _, st := range steps {
		byExecution[st.ExecutionID] = append(byExecution[st.ExecutionID], st)
	}
	for id := range byExecution {
		sort.SliceStable(byExecution[id], func(i, j int) bool {
			return byExecution[id][i].StepOrder < byExecution[id][j].StepOrder
		})
	}
	for i := range swaps {
		swaps[i].Steps = byExecution[swaps[i].ExecutionID]
	}
}
