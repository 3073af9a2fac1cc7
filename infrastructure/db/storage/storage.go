// Package storage implements model.PersistenceStore (spec.md §4.6) against
// the gorm tables infrastructure/db/dbaccess defines. Grounded on §5's
// shared-resource discipline -- "the DB is the only shared mutable
// resource... every multi-step write uses a DB transaction spanning
// exactly the writes that must be atomic" -- mapped onto gorm v1's
// Begin/Commit/Rollback (gorm v1.9.16, pinned in go.mod, predates the
// db.Transaction(func(*gorm.DB) error) helper gorm v2 added).
package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/pubdata"
	"github.com/dagrollup/rollupcore/infrastructure/db/dbaccess"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.PERS)

var _ model.PersistenceStore = (*Store)(nil)

// Store is the production model.PersistenceStore.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New returns a Store backed by ctx's connection.
func New(ctx *dbaccess.DatabaseContext) *Store {
	return &Store{db: ctx.DB, now: time.Now}
}

// withTransaction runs fn inside a gorm transaction, committing on success
// and rolling back on either an error return or a panic (re-panicking
// after rollback so the caller's goroutine wrapper still sees it).
func withTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("beginning transaction: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func encodeOperations(ops []*externalapi.Operation) []byte {
	var out []byte
	for _, op := range ops {
		out = append(out, pubdata.EncodeOperation(op)...)
	}
	return out
}

func decodeOperations(data []byte) ([]*externalapi.Operation, error) {
	var ops []*externalapi.Operation
	offset := 0
	for offset < len(data) {
		op, n, err := pubdata.DecodeOperation(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("decoding operation at offset %d: %w", offset, err)
		}
		ops = append(ops, op)
		offset += n
	}
	return ops, nil
}

// SaveBlock implements model.PersistenceStore: one transaction writes the
// sealed block row, its executed-transaction and executed-priority-
// operation rows, every account update it produced, and deletes the
// pending-block row it replaces (spec.md §5's save_block example).
func (s *Store) SaveBlock(block *externalapi.Block, updates []*externalapi.AccountUpdate,
	executedTxs []model.ExecutedTransaction, executedPriority []model.ExecutedPriorityOperation) error {

	return withTransaction(s.db, func(tx *gorm.DB) error {
		row := dbaccess.Block{
			BlockNumber:    block.BlockNumber,
			PreviousRoot:   block.PreviousRoot[:],
			NewRoot:        block.NewRoot[:],
			FeeAccountId:   uint32(block.FeeAccountId),
			Operations:     encodeOperations(block.Operations),
			PriorOpsBefore: block.PriorOpsBefore,
			PriorOpsAfter:  block.PriorOpsAfter,
			ChunkSize:      block.ChunkSize,
			Timestamp:      block.Timestamp,
			CommitmentHash: block.CommitmentHash[:],
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting block %d: %w", block.BlockNumber, err)
		}

		for _, u := range updates {
			r := dbaccess.AccountUpdate{
				AccountId:   uint32(u.AccountId),
				BlockNumber: u.BlockNumber,
				SubIndex:    u.SubIndex,
				Kind:        uint8(u.Kind),
				Payload:     encodeAccountUpdate(u),
			}
			if err := tx.Create(&r).Error; err != nil {
				return fmt.Errorf("inserting account update (account=%d block=%d sub=%d): %w",
					u.AccountId, u.BlockNumber, u.SubIndex, err)
			}
		}

		for _, t := range executedTxs {
			r := dbaccess.ExecutedTransaction{
				BlockNumber: t.BlockNumber,
				BlockIndex:  t.BlockIndex,
				TxHash:      t.TxHash[:],
				Success:     t.Success,
				FailReason:  t.FailReason,
				RawPayload:  t.RawPayload,
			}
			if err := tx.Create(&r).Error; err != nil {
				return fmt.Errorf("inserting executed transaction %s: %w", t.TxHash, err)
			}
		}

		for _, p := range executedPriority {
			r := dbaccess.ExecutedPriorityOperation{
				BlockNumber:  p.BlockNumber,
				PriorityOpId: p.PriorityOpId,
				RawPayload:   p.RawPayload,
			}
			if err := tx.Create(&r).Error; err != nil {
				return fmt.Errorf("inserting executed priority operation %d: %w", p.PriorityOpId, err)
			}
		}

		if err := tx.Where("id = ?", dbaccess.SingletonRowID).Delete(&dbaccess.PendingBlock{}).Error; err != nil {
			return fmt.Errorf("clearing pending block after sealing %d: %w", block.BlockNumber, err)
		}
		return nil
	})
}

func rowToBlock(row *dbaccess.Block) (*externalapi.Block, error) {
	ops, err := decodeOperations(row.Operations)
	if err != nil {
		return nil, err
	}
	return &externalapi.Block{
		BlockNumber:    row.BlockNumber,
		PreviousRoot:   externalapi.BytesToHash(row.PreviousRoot),
		NewRoot:        externalapi.BytesToHash(row.NewRoot),
		FeeAccountId:   externalapi.AccountId(row.FeeAccountId),
		Operations:     ops,
		PriorOpsBefore: row.PriorOpsBefore,
		PriorOpsAfter:  row.PriorOpsAfter,
		ChunkSize:      row.ChunkSize,
		Timestamp:      row.Timestamp,
		CommitmentHash: externalapi.BytesToHash(row.CommitmentHash),
	}, nil
}

// LoadBlock implements model.PersistenceStore.
func (s *Store) LoadBlock(blockNumber uint32) (*externalapi.Block, error) {
	row := &dbaccess.Block{}
	if err := s.db.Where("block_number = ?", blockNumber).First(row).Error; err != nil {
		return nil, err
	}
	return rowToBlock(row)
}

// BlockRange implements model.PersistenceStore: up to limit blocks at or
// below maxBlock, most recent first.
func (s *Store) BlockRange(maxBlock uint32, limit int) ([]*externalapi.Block, error) {
	var rows []dbaccess.Block
	if err := s.db.Where("block_number <= ?", maxBlock).
		Order("block_number DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*externalapi.Block, 0, len(rows))
	for i := range rows {
		block, err := rowToBlock(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}
	return out, nil
}

// LastCommitted implements model.PersistenceStore: the highest to_block
// among Commit aggregate operations confirmed on the anchor chain.
func (s *Store) LastCommitted() (uint32, error) {
	return s.maxConfirmedToBlock(uint8(externalapi.SubmitCommit))
}

// LastProved implements model.PersistenceStore.
func (s *Store) LastProved() (uint32, error) {
	return s.maxConfirmedToBlock(uint8(externalapi.SubmitProve))
}

// LastExecutedConfirmed implements model.PersistenceStore.
func (s *Store) LastExecutedConfirmed() (uint32, error) {
	return s.maxConfirmedToBlock(uint8(externalapi.SubmitExecute))
}

func (s *Store) maxConfirmedToBlock(kind uint8) (uint32, error) {
	var result struct{ Max uint32 }
	err := s.db.Table("aggregate_operations").
		Joins("JOIN eth_operations ON eth_operations.aggregate_operation_id = aggregate_operations.id").
		Where("aggregate_operations.kind = ? AND eth_operations.confirmed = ?", kind, true).
		Select("COALESCE(MAX(aggregate_operations.to_block), 0) AS max").
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return result.Max, nil
}

// RemoveAfter implements model.PersistenceStore: used by app startup to
// discard any block range the anchor chain never confirmed after an
// unclean shutdown.
func (s *Store) RemoveAfter(blockNumber uint32) error {
	return withTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("block_number > ?", blockNumber).Delete(&dbaccess.Block{}).Error; err != nil {
			return err
		}
		if err := tx.Where("block_number > ?", blockNumber).Delete(&dbaccess.AccountUpdate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("block_number > ?", blockNumber).Delete(&dbaccess.ExecutedTransaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("block_number > ?", blockNumber).Delete(&dbaccess.ExecutedPriorityOperation{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// SavePendingBlock implements model.PersistenceStore.
func (s *Store) SavePendingBlock(pending *externalapi.PendingBlock) error {
	row := dbaccess.PendingBlock{
		ID:              dbaccess.SingletonRowID,
		PreviousRoot:    pending.PreviousRoot[:],
		Operations:      encodeOperations(pending.Operations),
		ChunksUsed:      pending.ChunksUsed,
		ChunksRemaining: pending.ChunksRemaining,
		IterationCount:  pending.IterationCount,
		CreatedAt:       pending.CreatedAt,
		PriorOpsBefore:  pending.PriorOpsBefore,
		PriorOpsAfter:   pending.PriorOpsAfter,
	}
	return s.db.Save(&row).Error
}

// LoadPendingBlock implements model.PersistenceStore.
func (s *Store) LoadPendingBlock() (*externalapi.PendingBlock, error) {
	row := &dbaccess.PendingBlock{}
	if err := s.db.Where("id = ?", dbaccess.SingletonRowID).First(row).Error; err != nil {
		return nil, err
	}
	ops, err := decodeOperations(row.Operations)
	if err != nil {
		return nil, err
	}
	return &externalapi.PendingBlock{
		PreviousRoot:    externalapi.BytesToHash(row.PreviousRoot),
		Operations:      ops,
		ChunksUsed:      row.ChunksUsed,
		ChunksRemaining: row.ChunksRemaining,
		IterationCount:  row.IterationCount,
		CreatedAt:       row.CreatedAt,
		PriorOpsBefore:  row.PriorOpsBefore,
		PriorOpsAfter:   row.PriorOpsAfter,
	}, nil
}

// PendingBlockExists implements model.PersistenceStore.
func (s *Store) PendingBlockExists() (bool, error) {
	var count int
	if err := s.db.Model(&dbaccess.PendingBlock{}).Where("id = ?", dbaccess.SingletonRowID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RemovePendingBlock implements model.PersistenceStore.
func (s *Store) RemovePendingBlock() error {
	return s.db.Where("id = ?", dbaccess.SingletonRowID).Delete(&dbaccess.PendingBlock{}).Error
}

// LoadCommittedState implements model.PersistenceStore by replaying every
// account_updates row in (block_number, sub_index) order, independent of
// any live MerkleTree -- used to rebuild the tree from scratch at startup.
func (s *Store) LoadCommittedState() (map[externalapi.AccountId]*externalapi.Account, error) {
	return s.loadStateUpTo(nil)
}

// LoadStateAt implements model.PersistenceStore: state as of (and
// including) blockNumber.
func (s *Store) LoadStateAt(blockNumber uint32) (map[externalapi.AccountId]*externalapi.Account, error) {
	return s.loadStateUpTo(&blockNumber)
}

func (s *Store) loadStateUpTo(blockNumber *uint32) (map[externalapi.AccountId]*externalapi.Account, error) {
	query := s.db.Model(&dbaccess.AccountUpdate{})
	if blockNumber != nil {
		query = query.Where("block_number <= ?", *blockNumber)
	}
	var rows []dbaccess.AccountUpdate
	if err := query.Order("block_number ASC, sub_index ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	accounts := make(map[externalapi.AccountId]*externalapi.Account)
	for _, row := range rows {
		update, err := decodeAccountUpdate(externalapi.AccountUpdateKind(row.Kind), row.Payload)
		if err != nil {
			return nil, err
		}
		update.AccountId = externalapi.AccountId(row.AccountId)
		update.BlockNumber = row.BlockNumber
		update.SubIndex = row.SubIndex
		applyUpdate(accounts, update)
	}
	return accounts, nil
}

// applyUpdate folds one journal entry into the account map being
// reconstructed, mirroring the forward half of each kind's effect
// (spec.md §3's account_updates semantics).
func applyUpdate(accounts map[externalapi.AccountId]*externalapi.Account, u *externalapi.AccountUpdate) {
	switch u.Kind {
	case externalapi.UpdateCreate:
		accounts[u.AccountId] = &externalapi.Account{
			Id:       u.AccountId,
			Address:  u.Create.Address,
			Nonce:    u.Create.Nonce,
			Balances: make(map[externalapi.TokenId]externalapi.Amount),
			NFTs:     make(map[externalapi.TokenId]*externalapi.NFT),
		}
	case externalapi.UpdateDelete:
		delete(accounts, u.AccountId)
	case externalapi.UpdateBalance:
		acc := accounts[u.AccountId]
		acc.SetBalance(u.Balance.Token, u.Balance.NewBalance)
		acc.Nonce = u.Balance.NewNonce
	case externalapi.UpdateChangePubKeyHash:
		acc := accounts[u.AccountId]
		acc.PubKeyHash = u.ChangePubKeyHash.NewHash
		acc.Nonce = u.ChangePubKeyHash.NewNonce
	case externalapi.UpdateMintNFT:
		acc := accounts[u.AccountId]
		nft := u.MintNFT.NFT
		acc.NFTs[u.MintNFT.Token] = &nft
		acc.SetBalance(u.MintNFT.Token, externalapi.AmountFromUint64(1))
	case externalapi.UpdateRemoveNFT:
		acc := accounts[u.AccountId]
		delete(acc.NFTs, u.RemoveNFT.Token)
		acc.SetBalance(u.RemoveNFT.Token, externalapi.ZeroAmount())
	}
}

// SaveTreeCache implements model.PersistenceStore.
func (s *Store) SaveTreeCache(blockNumber uint32, serializedCache []byte) error {
	row := dbaccess.AccountTreeCache{BlockNumber: blockNumber, Cache: serializedCache}
	return s.db.Save(&row).Error
}

// LoadTreeCache implements model.PersistenceStore.
func (s *Store) LoadTreeCache(blockNumber uint32) ([]byte, error) {
	row := &dbaccess.AccountTreeCache{}
	if err := s.db.Where("block_number = ?", blockNumber).First(row).Error; err != nil {
		return nil, err
	}
	return row.Cache, nil
}

// NextSubmitterOperationId implements model.PersistenceStore: one greater
// than the highest id ever saved across every kind, confirmed or not,
// mirroring maxConfirmedToBlock's COALESCE(MAX(...), 0) shape so an empty
// table yields id 1.
func (s *Store) NextSubmitterOperationId() (externalapi.SubmitterOperationId, error) {
	var result struct{ Max uint64 }
	err := s.db.Table("aggregate_operations").
		Select("COALESCE(MAX(id), 0) AS max").
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return externalapi.SubmitterOperationId(result.Max + 1), nil
}

// SaveSubmitterOperation implements model.PersistenceStore: writes the
// logical aggregate-operation row and its submitter-side dispatch row in
// one transaction, and marks it unprocessed until its first sent hash
// (an extension beyond the interface's literal method set -- see
// DESIGN.md's note on eth_op_unprocessed).
func (s *Store) SaveSubmitterOperation(op *externalapi.SubmitterOperation) error {
	return withTransaction(s.db, func(tx *gorm.DB) error {
		agg := dbaccess.AggregateOperation{
			ID:        uint64(op.Id),
			Kind:      uint8(op.Kind),
			FromBlock: op.FromBlock,
			ToBlock:   op.ToBlock,
			Payload:   op.Payload,
		}
		if err := tx.Save(&agg).Error; err != nil {
			return fmt.Errorf("saving aggregate operation %d: %w", op.Id, err)
		}

		gasPrice := op.LastGasPrice.Bytes32()
		var finalHash externalapi.Hash
		if op.FinalHash != nil {
			finalHash = *op.FinalHash
		}
		eth := dbaccess.EthOperation{
			AggregateOperationId: uint64(op.Id),
			Nonce:                op.Nonce,
			LastDeadlineBlock:    op.LastDeadlineBlock,
			LastGasPrice:         gasPrice[:],
			Confirmed:            op.Confirmed,
			FinalHash:            finalHash[:],
		}
		if err := tx.Where("aggregate_operation_id = ?", uint64(op.Id)).
			Assign(eth).FirstOrCreate(&dbaccess.EthOperation{}).Error; err != nil {
			return fmt.Errorf("saving eth operation for %d: %w", op.Id, err)
		}

		if len(op.SentHashes) == 0 {
			if err := tx.Save(&dbaccess.EthOpUnprocessed{AggregateOperationId: uint64(op.Id)}).Error; err != nil {
				return fmt.Errorf("marking operation %d unprocessed: %w", op.Id, err)
			}
		}
		return nil
	})
}

func (s *Store) ethOperationIdFor(aggregateOperationId uint64) (uint64, error) {
	row := &dbaccess.EthOperation{}
	if err := s.db.Where("aggregate_operation_id = ?", aggregateOperationId).First(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *Store) hydrateSubmitterOperation(agg *dbaccess.AggregateOperation, eth *dbaccess.EthOperation) (*externalapi.SubmitterOperation, error) {
	var hashRows []dbaccess.EthOpHash
	if err := s.db.Where("eth_operation_id = ?", eth.ID).Order("id ASC").Find(&hashRows).Error; err != nil {
		return nil, err
	}
	sentHashes := make([]externalapi.Hash, len(hashRows))
	for i, r := range hashRows {
		sentHashes[i] = externalapi.BytesToHash(r.Hash)
	}

	var finalHash *externalapi.Hash
	if eth.Confirmed {
		h := externalapi.BytesToHash(eth.FinalHash)
		finalHash = &h
	}

	return &externalapi.SubmitterOperation{
		Id:                externalapi.SubmitterOperationId(agg.ID),
		Kind:              externalapi.SubmitterOperationKind(agg.Kind),
		FromBlock:         agg.FromBlock,
		ToBlock:           agg.ToBlock,
		Payload:           agg.Payload,
		Nonce:             eth.Nonce,
		LastDeadlineBlock: eth.LastDeadlineBlock,
		LastGasPrice:      externalapi.AmountFromBig20(eth.LastGasPrice),
		SentHashes:        sentHashes,
		Confirmed:         eth.Confirmed,
		FinalHash:         finalHash,
	}, nil
}

// LoadSubmitterOperation implements model.PersistenceStore.
func (s *Store) LoadSubmitterOperation(id externalapi.SubmitterOperationId) (*externalapi.SubmitterOperation, error) {
	agg := &dbaccess.AggregateOperation{}
	if err := s.db.Where("id = ?", uint64(id)).First(agg).Error; err != nil {
		return nil, err
	}
	eth := &dbaccess.EthOperation{}
	if err := s.db.Where("aggregate_operation_id = ?", uint64(id)).First(eth).Error; err != nil {
		return nil, err
	}
	return s.hydrateSubmitterOperation(agg, eth)
}

// LoadUnconfirmedSubmitterOperations implements model.PersistenceStore:
// every dispatched-but-unconfirmed operation plus every operation never
// even dispatched yet (eth_op_unprocessed), ordered by id so a restarted
// ChainSubmitter resumes FIFO (spec.md §4.7).
func (s *Store) LoadUnconfirmedSubmitterOperations() ([]*externalapi.SubmitterOperation, error) {
	var ethRows []dbaccess.EthOperation
	if err := s.db.Where("confirmed = ?", false).Find(&ethRows).Error; err != nil {
		return nil, err
	}
	aggIds := make([]uint64, 0, len(ethRows))
	for _, r := range ethRows {
		aggIds = append(aggIds, r.AggregateOperationId)
	}

	var unprocessed []dbaccess.EthOpUnprocessed
	if err := s.db.Find(&unprocessed).Error; err != nil {
		return nil, err
	}
	dispatched := make(map[uint64]bool, len(aggIds))
	for _, id := range aggIds {
		dispatched[id] = true
	}
	for _, u := range unprocessed {
		if !dispatched[u.AggregateOperationId] {
			aggIds = append(aggIds, u.AggregateOperationId)
		}
	}

	var aggs []dbaccess.AggregateOperation
	if len(aggIds) > 0 {
		if err := s.db.Where("id IN (?)", aggIds).Find(&aggs).Error; err != nil {
			return nil, err
		}
	}
	aggById := make(map[uint64]*dbaccess.AggregateOperation, len(aggs))
	for i := range aggs {
		aggById[aggs[i].ID] = &aggs[i]
	}
	ethById := make(map[uint64]*dbaccess.EthOperation, len(ethRows))
	for i := range ethRows {
		ethById[ethRows[i].AggregateOperationId] = &ethRows[i]
	}

	out := make([]*externalapi.SubmitterOperation, 0, len(aggIds))
	for _, id := range aggIds {
		agg, ok := aggById[id]
		if !ok {
			continue
		}
		eth, ok := ethById[id]
		if !ok {
			eth = &dbaccess.EthOperation{AggregateOperationId: id}
		}
		op, err := s.hydrateSubmitterOperation(agg, eth)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

// AppendSentHash implements model.PersistenceStore: records one more
// anchor-chain transaction attempt and clears the operation's unprocessed
// marker, since a sent hash means dispatch has begun.
func (s *Store) AppendSentHash(id externalapi.SubmitterOperationId, hash externalapi.Hash) error {
	return withTransaction(s.db, func(tx *gorm.DB) error {
		ethId, err := s.ethOperationIdFor(uint64(id))
		if err != nil {
			return fmt.Errorf("looking up eth operation for %d: %w", id, err)
		}
		row := dbaccess.EthOpHash{EthOperationId: ethId, Hash: hash[:], SentAt: s.now()}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("appending sent hash for %d: %w", id, err)
		}
		if err := tx.Where("aggregate_operation_id = ?", uint64(id)).
			Delete(&dbaccess.EthOpUnprocessed{}).Error; err != nil {
			return fmt.Errorf("clearing unprocessed marker for %d: %w", id, err)
		}
		return nil
	})
}

// ConfirmSubmitterOperation implements model.PersistenceStore.
func (s *Store) ConfirmSubmitterOperation(id externalapi.SubmitterOperationId, finalHash externalapi.Hash) error {
	return s.db.Model(&dbaccess.EthOperation{}).
		Where("aggregate_operation_id = ?", uint64(id)).
		Updates(map[string]interface{}{"confirmed": true, "final_hash": finalHash[:]}).Error
}

// SaveEventCursor implements model.PersistenceStore.
func (s *Store) SaveEventCursor(blockNumber uint64) error {
	row := dbaccess.EventCursor{ID: dbaccess.SingletonRowID, BlockNumber: blockNumber}
	return s.db.Save(&row).Error
}

// LoadEventCursor implements model.PersistenceStore.
func (s *Store) LoadEventCursor() (uint64, error) {
	row := &dbaccess.EventCursor{}
	if err := s.db.Where("id = ?", dbaccess.SingletonRowID).First(row).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return 0, nil
		}
		return 0, err
	}
	return row.BlockNumber, nil
}
