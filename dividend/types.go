package dividend

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

// Round is a funded distribution. Pool, SnapshotSequence and
// CirculatingSupply never change after creation; Paid and Claims only grow,
// except when a failed payment is rolled back.
type Round struct {
	ID                uint64
	Pool              amount.Amount
	SnapshotSequence  uint64
	CirculatingSupply amount.Amount
	Funder            account.Address
	Paid              amount.Amount
	Claims            uint64
	CreatedAt         time.Time
}

// Unclaimed returns the part of the pool not yet paid out, dust included.
func (r Round) Unclaimed() amount.Amount {
	rest, err := r.Pool.Sub(r.Paid)
	if err != nil {
		return amount.Zero()
	}
	return rest
}

// ClaimStatus is the state of a holder's claim on a round.
type ClaimStatus uint8

const (
	// ClaimNone means the holder has not claimed.
	ClaimNone ClaimStatus = iota
	// ClaimPending means the claim is recorded and its payment is in flight.
	ClaimPending
	// ClaimPaid means the claim has been paid.
	ClaimPaid
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimNone:
		return "none"
	case ClaimPending:
		return "pending"
	case ClaimPaid:
		return "paid"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Claim is a holder's claim record on a round.
type Claim struct {
	RoundID uint64
	Holder  account.Address
	Status  ClaimStatus
	Amount  amount.Amount
}

// Payout is one paid claim.
type Payout struct {
	RoundID uint64
	Amount  amount.Amount
}

const (
	// id(8) + pool(32) + snapshot(8) + circulating(32) + funder(20) + paid(32) + claims(8) + created(8)
	roundSize = 8 + amount.Size + 8 + amount.Size + account.Size + amount.Size + 8 + 8
	// status(1) + amount(32)
	claimSize = 1 + amount.Size
)

// SerializeRound encodes a round to binary format.
func SerializeRound(r Round) []byte {
	buf := make([]byte, roundSize)
	offset := 0

	binary.BigEndian.PutUint64(buf[offset:offset+8], r.ID)
	offset += 8
	pool := r.Pool.Bytes()
	copy(buf[offset:offset+amount.Size], pool[:])
	offset += amount.Size
	binary.BigEndian.PutUint64(buf[offset:offset+8], r.SnapshotSequence)
	offset += 8
	circ := r.CirculatingSupply.Bytes()
	copy(buf[offset:offset+amount.Size], circ[:])
	offset += amount.Size
	copy(buf[offset:offset+account.Size], r.Funder[:])
	offset += account.Size
	paid := r.Paid.Bytes()
	copy(buf[offset:offset+amount.Size], paid[:])
	offset += amount.Size
	binary.BigEndian.PutUint64(buf[offset:offset+8], r.Claims)
	offset += 8
	var created int64
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(created))
	return buf
}

// DeserializeRound decodes binary data into a Round.
func DeserializeRound(data []byte) (Round, error) {
	if len(data) != roundSize {
		return Round{}, fmt.Errorf("%w: round expected %d bytes, got %d", ErrCorruptRecord, roundSize, len(data))
	}
	var (
		r      Round
		err    error
		offset int
	)
	r.ID = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	if r.Pool, err = amount.FromBytes(data[offset : offset+amount.Size]); err != nil {
		return Round{}, err
	}
	offset += amount.Size
	r.SnapshotSequence = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	if r.CirculatingSupply, err = amount.FromBytes(data[offset : offset+amount.Size]); err != nil {
		return Round{}, err
	}
	offset += amount.Size
	copy(r.Funder[:], data[offset:offset+account.Size])
	offset += account.Size
	if r.Paid, err = amount.FromBytes(data[offset : offset+amount.Size]); err != nil {
		return Round{}, err
	}
	offset += amount.Size
	r.Claims = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	if created := int64(binary.BigEndian.Uint64(data[offset : offset+8])); created != 0 {
		r.CreatedAt = time.Unix(0, created).UTC()
	}
	return r, nil
}

// serializeClaim encodes the status and amount of a claim; round and holder
// are part of the key.
func serializeClaim(c Claim) []byte {
	buf := make([]byte, claimSize)
	buf[0] = byte(c.Status)
	amt := c.Amount.Bytes()
	copy(buf[1:], amt[:])
	return buf
}

func deserializeClaim(id uint64, holder account.Address, data []byte) (Claim, error) {
	if len(data) != claimSize {
		return Claim{}, fmt.Errorf("%w: claim expected %d bytes, got %d", ErrCorruptRecord, claimSize, len(data))
	}
	amt, err := amount.FromBytes(data[1:])
	if err != nil {
		return Claim{}, err
	}
	return Claim{RoundID: id, Holder: holder, Status: ClaimStatus(data[0]), Amount: amt}, nil
}
