package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

// Checkpoint is an account balance as of a sequence number. Checkpoints are
// appended in sequence order and never modified.
type Checkpoint struct {
	Sequence uint64
	Balance  amount.Amount
}

// Holding is an account with its current balance.
type Holding struct {
	Account account.Address
	Balance amount.Amount
}

// State is the ledger-wide counters.
type State struct {
	Sequence    uint64        // last committed operation
	TotalSupply amount.Amount // sum of all balances
}

// Receipt describes a committed operation.
type Receipt struct {
	ID       string // unique operation id
	Op       string
	Sequence uint64
}

// Batch is the complete effect of one operation. Every entry in Balances is
// written together with a checkpoint at Sequence.
type Batch struct {
	Sequence    uint64
	TotalSupply amount.Amount
	Balances    map[account.Address]amount.Amount
}

const checkpointSize = 8 + amount.Size // sequence(8) + balance(32)

// SerializeCheckpoint encodes a checkpoint to binary format.
func SerializeCheckpoint(cp Checkpoint) []byte {
	buf := make([]byte, checkpointSize)
	binary.BigEndian.PutUint64(buf[0:8], cp.Sequence)
	bal := cp.Balance.Bytes()
	copy(buf[8:], bal[:])
	return buf
}

// DeserializeCheckpoint decodes binary data into a Checkpoint.
func DeserializeCheckpoint(data []byte) (Checkpoint, error) {
	if len(data) != checkpointSize {
		return Checkpoint{}, fmt.Errorf("%w: checkpoint expected %d bytes, got %d", ErrCorruptRecord, checkpointSize, len(data))
	}
	bal, err := amount.FromBytes(data[8:])
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{Sequence: binary.BigEndian.Uint64(data[0:8]), Balance: bal}, nil
}
