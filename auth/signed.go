package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/sha3"

	"github.com/bitfsorg/digikoin-go/account"
)

const grantDomain = "digikoin-grant:v1"

// Grant is an owner-signed statement that Holder carries Role.
type Grant struct {
	Role      Role
	Holder    account.Address
	Signature *ec.Signature
}

// GrantDigest returns the 32-byte message the owner signs for a grant.
func GrantDigest(role Role, holder account.Address) []byte {
	msg := make([]byte, 0, len(grantDomain)+1+account.Size)
	msg = append(msg, grantDomain...)
	msg = append(msg, byte(role))
	msg = append(msg, holder[:]...)
	sum := sha3.Sum256(msg)
	return sum[:]
}

// IssueGrant signs a grant of role to holder with the owner's key.
func IssueGrant(owner *ec.PrivateKey, role Role, holder account.Address) (Grant, error) {
	if owner == nil {
		return Grant{}, ErrNilKey
	}
	sig, err := owner.Sign(GrantDigest(role, holder))
	if err != nil {
		return Grant{}, fmt.Errorf("auth: sign grant: %w", err)
	}
	return Grant{Role: role, Holder: holder, Signature: sig}, nil
}

// FormatGrant encodes g as "role:holder:signature", the signature in hex DER.
func FormatGrant(g Grant) string {
	var sig string
	if g.Signature != nil {
		sig = hex.EncodeToString(g.Signature.Serialize())
	}
	return g.Role.String() + ":" + g.Holder.String() + ":" + sig
}

// ParseGrant decodes the output of FormatGrant. The signature is not
// checked here; the gate verifies it.
func ParseGrant(s string) (Grant, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Grant{}, fmt.Errorf("%w: want role:holder:signature", ErrMalformedGrant)
	}
	role, err := ParseRole(parts[0])
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %w", ErrMalformedGrant, err)
	}
	holder, err := account.Parse(parts[1])
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %w", ErrMalformedGrant, err)
	}
	der, err := hex.DecodeString(parts[2])
	if err != nil {
		return Grant{}, fmt.Errorf("%w: signature: %w", ErrMalformedGrant, err)
	}
	sig, err := ec.FromDER(der)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: signature: %w", ErrMalformedGrant, err)
	}
	return Grant{Role: role, Holder: holder, Signature: sig}, nil
}

// SignedGate accepts the owner, addresses granted a role locally, and any
// caller presenting a grant for the requested role signed by the owner's key.
type SignedGate struct {
	owner     *ec.PublicKey
	ownerAddr account.Address
	local     *StaticGate
}

// Compile-time interface check.
var _ Gate = (*SignedGate)(nil)

// NewSignedGate creates a gate trusting grants signed by owner.
func NewSignedGate(owner *ec.PublicKey) (*SignedGate, error) {
	if owner == nil {
		return nil, ErrNilKey
	}
	addr, err := account.FromPublicKey(owner)
	if err != nil {
		return nil, err
	}
	return &SignedGate{owner: owner, ownerAddr: addr, local: NewStaticGate(addr)}, nil
}

// Grant gives role to addr without a signature. Used for in-process
// components such as the reserve manager.
func (g *SignedGate) Grant(role Role, addr account.Address) { g.local.Grant(role, addr) }

// Owner returns the owner address.
func (g *SignedGate) Owner() account.Address { return g.ownerAddr }

// Authorize implements Gate.
func (g *SignedGate) Authorize(c Capability, role Role) error {
	if c.Caller.IsZero() {
		return unauthorized(c, role)
	}
	if g.local.Authorize(c, role) == nil {
		return nil
	}
	for _, grant := range c.Grants {
		if grant.Role != role || grant.Holder != c.Caller || grant.Signature == nil {
			continue
		}
		if grant.Signature.Verify(GrantDigest(role, c.Caller), g.owner) {
			return nil
		}
	}
	return unauthorized(c, role)
}
