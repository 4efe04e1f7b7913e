// file: pkg/ledger/address.go
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NodeIDLength is the size of a ledger node id; the first byte is the entity type.
const NodeIDLength = 30

// EntityType is the leading byte of a node id.
type EntityType byte

const (
	EntityGlobalPackage                      EntityType = 0x0D
	EntityGlobalPreallocatedEd25519Account   EntityType = 0x51
	EntityGlobalFungibleResourceManager      EntityType = 0x5D
	EntityGlobalNonFungibleResourceManager   EntityType = 0x9A
	EntityGlobalGenericComponent             EntityType = 0xC0
	EntityGlobalAccount                      EntityType = 0xC1
	EntityGlobalPreallocatedSecp256k1Account EntityType = 0xD1
)

// NodeID identifies any global entity on the ledger.
type NodeID [NodeIDLength]byte

func (n NodeID) EntityType() EntityType { return EntityType(n[0]) }

func (n NodeID) IsGlobalAccount() bool {
	switch n.EntityType() {
	case EntityGlobalAccount, EntityGlobalPreallocatedSecp256k1Account, EntityGlobalPreallocatedEd25519Account:
		return true
	}
	return false
}

func (n NodeID) IsGlobalResource() bool {
	t := n.EntityType()
	return t == EntityGlobalFungibleResourceManager || t == EntityGlobalNonFungibleResourceManager
}

func (n NodeID) IsGlobalComponent() bool {
	return n.IsGlobalAccount() || n.EntityType() == EntityGlobalGenericComponent
}

func (n NodeID) IsZero() bool { return n == NodeID{} }

// String returns the 0x-prefixed hex form.
// Bech32m rendering is left to the wallet layer.
func (n NodeID) String() string { return hexutil.Encode(n[:]) }

func (n NodeID) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseNodeID decodes a 0x-prefixed hex node id.
func ParseNodeID(s string) (NodeID, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	if len(raw) != NodeIDLength {
		return NodeID{}, fmt.Errorf("node id must be %d bytes, got %d", NodeIDLength, len(raw))
	}
	var n NodeID
	copy(n[:], raw)
	return n, nil
}

// NewNodeID builds a node id of the given entity type from a 29-byte body.
// Shorter bodies are right-aligned; longer ones are truncated.
func NewNodeID(t EntityType, body []byte) NodeID {
	var n NodeID
	n[0] = byte(t)
	if len(body) > NodeIDLength-1 {
		body = body[:NodeIDLength-1]
	}
	copy(n[NodeIDLength-len(body):], body)
	return n
}

// ComponentAddress is a global component (accounts included).
type ComponentAddress struct{ NodeID }

// NewComponentAddress rejects node ids that are not global components.
func NewComponentAddress(n NodeID) (ComponentAddress, error) {
	if !n.IsGlobalComponent() {
		return ComponentAddress{}, fmt.Errorf("node %s is not a global component (entity type 0x%02x)", n, byte(n.EntityType()))
	}
	return ComponentAddress{n}, nil
}

func ParseComponentAddress(s string) (ComponentAddress, error) {
	n, err := ParseNodeID(s)
	if err != nil {
		return ComponentAddress{}, err
	}
	return NewComponentAddress(n)
}

func (a *ComponentAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ResourceAddress is a fungible or non-fungible resource manager.
type ResourceAddress struct{ NodeID }

// NewResourceAddress rejects node ids that are not resource managers.
func NewResourceAddress(n NodeID) (ResourceAddress, error) {
	if !n.IsGlobalResource() {
		return ResourceAddress{}, fmt.Errorf("node %s is not a resource (entity type 0x%02x)", n, byte(n.EntityType()))
	}
	return ResourceAddress{n}, nil
}

func ParseResourceAddress(s string) (ResourceAddress, error) {
	n, err := ParseNodeID(s)
	if err != nil {
		return ResourceAddress{}, err
	}
	return NewResourceAddress(n)
}

func (a *ResourceAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseResourceAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ManifestAddress is either a static global address or a reference to an
// address reservation named earlier in the manifest.
type ManifestAddress struct {
	Static NodeID
	Named  uint32
	IsName bool
}

func StaticAddress(n NodeID) ManifestAddress { return ManifestAddress{Static: n} }

func NamedAddress(id uint32) ManifestAddress { return ManifestAddress{Named: id, IsName: true} }

func (a ManifestAddress) String() string {
	if a.IsName {
		return fmt.Sprintf("NamedAddress(%d)", a.Named)
	}
	return a.Static.String()
}

func (a ManifestAddress) MarshalText() ([]byte, error) {
	if a.IsName {
		return []byte(fmt.Sprintf("named:%d", a.Named)), nil
	}
	return a.Static.MarshalText()
}

func (a *ManifestAddress) UnmarshalText(text []byte) error {
	var id uint32
	if _, err := fmt.Sscanf(string(text), "named:%d", &id); err == nil {
		*a = NamedAddress(id)
		return nil
	}
	n, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*a = StaticAddress(n)
	return nil
}
