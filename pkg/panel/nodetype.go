package panel

import "fmt"

// NodeType identifies the proxy protocol a node speaks. It doubles as the
// path segment routing requests to the matching panel endpoints.
type NodeType string

const (
	Trojan      NodeType = "trojan"
	Shadowsocks NodeType = "shadowsocks"
	Hysteria    NodeType = "hysteria"
	Hysteria2   NodeType = "hysteria2"
	VMess       NodeType = "vmess"
	AnyTLS      NodeType = "anytls"
	Tuic        NodeType = "tuic"
)

// NodeTypes lists every supported protocol.
var NodeTypes = []NodeType{Trojan, Shadowsocks, Hysteria, Hysteria2, VMess, AnyTLS, Tuic}

func (t NodeType) String() string { return string(t) }

// Valid reports whether t is one of the supported protocols.
func (t NodeType) Valid() bool {
	switch t {
	case Trojan, Shadowsocks, Hysteria, Hysteria2, VMess, AnyTLS, Tuic:
		return true
	}
	return false
}

// ParseNodeType converts a protocol name to a NodeType. "ss" is accepted
// as an alias for shadowsocks.
func ParseNodeType(s string) (NodeType, error) {
	if s == "ss" {
		return Shadowsocks, nil
	}
	t := NodeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown node type %q", s)
	}
	return t, nil
}
