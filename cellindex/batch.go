package cellindex

import (
	"context"

	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
	"github.com/nonibytes/cellindex/cellindex/row"
)

type BatchOpKind int

const (
	batchPut BatchOpKind = iota
	batchDelete
)

type BatchOp struct {
	Kind BatchOpKind
	Row  row.Row // for put
	Key  string  // for delete
}

// Batch collects row writes and deletes applied together by Index.Batch.
// Deleting a key that is not indexed is not counted.
type Batch struct {
	ops []BatchOp
}

func NewBatch() Batch {
	return Batch{ops: make([]BatchOp, 0)}
}

func (b *Batch) Put(r row.Row) error {
	if len(r.Partition) == 0 {
		return cierrors.New(ErrData, "row has no partition key")
	}
	b.ops = append(b.ops, BatchOp{Kind: batchPut, Row: r})
	return nil
}

func (b *Batch) Delete(key string) error {
	if key == "" {
		return cierrors.New(ErrData, "key cannot be empty")
	}
	b.ops = append(b.ops, BatchOp{Kind: batchDelete, Key: key})
	return nil
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) Empty() bool {
	return len(b.ops) == 0
}

// Execute is implemented on Index to keep storage access internal
func (b *Batch) Execute(ctx context.Context, ix *Index) (int, error) {
	return ix.Batch(ctx, *b)
}
