package panel

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// IntBool is a bool that also accepts 0/1 in JSON. Some panel versions
// emit integers for boolean fields.
type IntBool bool

func (b *IntBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*b = true
		return nil
	case "false", "null":
		*b = false
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid boolean value %s", data)
	}
	*b = n != 0
	return nil
}

func (b IntBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// TLSConfig holds inbound TLS settings.
type TLSConfig struct {
	ServerName  string `json:"server_name,omitempty"`
	Certificate string `json:"certificate,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
}

// WebSocketConfig holds websocket transport settings.
type WebSocketConfig struct {
	Path    string            `json:"path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// HTTPConfig holds HTTP/2 transport settings.
type HTTPConfig struct {
	Host []string `json:"host,omitempty"`
	Path string   `json:"path,omitempty"`
}

// TCPConfig holds TCP transport settings.
type TCPConfig struct {
	Header *TCPHeader `json:"header,omitempty"`
}

// TCPHeader describes TCP header obfuscation.
type TCPHeader struct {
	Type     string             `json:"type,omitempty"`
	Request  *TCPHeaderRequest  `json:"request,omitempty"`
	Response *TCPHeaderResponse `json:"response,omitempty"`
}

type TCPHeaderRequest struct {
	Version string              `json:"version,omitempty"`
	Method  string              `json:"method,omitempty"`
	Path    []string            `json:"path,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
}

type TCPHeaderResponse struct {
	Version string              `json:"version,omitempty"`
	Status  string              `json:"status,omitempty"`
	Reason  string              `json:"reason,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
}

// GRPCConfig holds gRPC transport settings.
type GRPCConfig struct {
	ServiceName string `json:"service_name,omitempty"`
}

// RouterConfig holds outbound routing rules.
type RouterConfig struct {
	Rules []RouterRule `json:"rules,omitempty"`
}

type RouterRule struct {
	Type        string   `json:"type,omitempty"`
	Domain      []string `json:"domain,omitempty"`
	IP          []string `json:"ip,omitempty"`
	OutboundTag string   `json:"outbound_tag,omitempty"`
}

// DNSConfig holds resolver settings.
type DNSConfig struct {
	Servers []DNSServer `json:"servers,omitempty"`
}

// DNSServer is either a bare address string or an object with address,
// port, and matched domains.
type DNSServer struct {
	Address string   `json:"address"`
	Port    uint16   `json:"port,omitempty"`
	Domains []string `json:"domains,omitempty"`
}

func (s *DNSServer) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Address)
	}
	type dnsServer DNSServer
	return json.Unmarshal(data, (*dnsServer)(s))
}

func (s DNSServer) MarshalJSON() ([]byte, error) {
	if s.Port == 0 && len(s.Domains) == 0 {
		return json.Marshal(s.Address)
	}
	type dnsServer DNSServer
	return json.Marshal(dnsServer(s))
}

// TrojanConfig is the panel-issued configuration for a trojan node.
type TrojanConfig struct {
	ID              int64            `json:"id"`
	ServerPort      uint16           `json:"server_port"`
	ServerName      string           `json:"server_name,omitempty"`
	Network         string           `json:"network,omitempty"`
	WebSocketConfig *WebSocketConfig `json:"websocket_config,omitempty"`
	GRPCConfig      *GRPCConfig      `json:"grpc_config,omitempty"`
}

// ShadowsocksConfig is the panel-issued configuration for a shadowsocks node.
type ShadowsocksConfig struct {
	ID         int64  `json:"id"`
	ServerPort uint16 `json:"server_port"`
	Method     string `json:"method,omitempty"`
	Network    string `json:"network,omitempty"`
}

// HysteriaConfig is the panel-issued configuration for a hysteria node.
type HysteriaConfig struct {
	ID                  int64   `json:"id"`
	ServerPort          uint16  `json:"server_port"`
	Protocol            string  `json:"protocol,omitempty"`
	Obfs                string  `json:"obfs,omitempty"`
	UpMbps              int32   `json:"up_mbps,omitempty"`
	DownMbps            int32   `json:"down_mbps,omitempty"`
	DisableMTUDiscovery IntBool `json:"disable_mtu_discovery,omitempty"`
	DisableUDP          IntBool `json:"disable_udp,omitempty"`
}

// Hysteria2Config is the panel-issued configuration for a hysteria2 node.
type Hysteria2Config struct {
	ID                 int64   `json:"id"`
	ServerPort         uint16  `json:"server_port"`
	Obfs               string  `json:"obfs,omitempty"`
	UpMbps             int32   `json:"up_mbps,omitempty"`
	DownMbps           int32   `json:"down_mbps,omitempty"`
	IgnoreCliBandwidth IntBool `json:"ignore_cli_bandwidth,omitempty"`
	DisableUDP         IntBool `json:"disable_udp,omitempty"`
}

// VMessConfig is the panel-issued configuration for a vmess node.
type VMessConfig struct {
	ID              int64            `json:"id"`
	ServerPort      uint16           `json:"server_port"`
	TLS             IntBool          `json:"tls,omitempty"`
	Network         string           `json:"network,omitempty"`
	TLSConfig       *TLSConfig       `json:"tls_config,omitempty"`
	WebSocketConfig *WebSocketConfig `json:"websocket_config,omitempty"`
	H2Config        *HTTPConfig      `json:"h2_config,omitempty"`
	TCPConfig       *TCPConfig       `json:"tcp_config,omitempty"`
	GRPCConfig      *GRPCConfig      `json:"grpc_config,omitempty"`
	RouterSettings  *RouterConfig    `json:"router_settings,omitempty"`
	DNSSettings     *DNSConfig       `json:"dns_settings,omitempty"`
}

// AnyTLSConfig is the panel-issued configuration for an anytls node.
type AnyTLSConfig struct {
	ID           int64    `json:"id"`
	ServerPort   uint16   `json:"server_port"`
	ServerName   string   `json:"server_name,omitempty"`
	PaddingRules []string `json:"padding_rules,omitempty"`
}

// TuicConfig is the panel-issued configuration for a tuic node.
type TuicConfig struct {
	ID               int64   `json:"id"`
	ServerPort       uint16  `json:"server_port"`
	ServerName       string  `json:"server_name,omitempty"`
	ZeroRTTHandshake IntBool `json:"zero_rtt_handshake,omitempty"`
}

// NodeConfig is the tagged union of per-protocol configurations. Exactly
// one variant pointer matching Type is non-nil.
type NodeConfig struct {
	Type NodeType

	Trojan      *TrojanConfig
	Shadowsocks *ShadowsocksConfig
	Hysteria    *HysteriaConfig
	Hysteria2   *Hysteria2Config
	VMess       *VMessConfig
	AnyTLS      *AnyTLSConfig
	Tuic        *TuicConfig
}

// ID returns the node id shared by every variant.
func (c *NodeConfig) ID() int64 {
	switch c.Type {
	case Trojan:
		return c.Trojan.ID
	case Shadowsocks:
		return c.Shadowsocks.ID
	case Hysteria:
		return c.Hysteria.ID
	case Hysteria2:
		return c.Hysteria2.ID
	case VMess:
		return c.VMess.ID
	case AnyTLS:
		return c.AnyTLS.ID
	case Tuic:
		return c.Tuic.ID
	}
	return 0
}

// ServerPort returns the listen port shared by every variant.
func (c *NodeConfig) ServerPort() uint16 {
	switch c.Type {
	case Trojan:
		return c.Trojan.ServerPort
	case Shadowsocks:
		return c.Shadowsocks.ServerPort
	case Hysteria:
		return c.Hysteria.ServerPort
	case Hysteria2:
		return c.Hysteria2.ServerPort
	case VMess:
		return c.VMess.ServerPort
	case AnyTLS:
		return c.AnyTLS.ServerPort
	case Tuic:
		return c.Tuic.ServerPort
	}
	return 0
}

func (c *NodeConfig) mismatch(want NodeType) error {
	return fmt.Errorf("node config is %s, not %s", c.Type, want)
}

// AsTrojan returns the trojan variant or an error if the config holds a
// different protocol.
func (c *NodeConfig) AsTrojan() (*TrojanConfig, error) {
	if c.Type != Trojan {
		return nil, c.mismatch(Trojan)
	}
	return c.Trojan, nil
}

func (c *NodeConfig) AsShadowsocks() (*ShadowsocksConfig, error) {
	if c.Type != Shadowsocks {
		return nil, c.mismatch(Shadowsocks)
	}
	return c.Shadowsocks, nil
}

func (c *NodeConfig) AsHysteria() (*HysteriaConfig, error) {
	if c.Type != Hysteria {
		return nil, c.mismatch(Hysteria)
	}
	return c.Hysteria, nil
}

func (c *NodeConfig) AsHysteria2() (*Hysteria2Config, error) {
	if c.Type != Hysteria2 {
		return nil, c.mismatch(Hysteria2)
	}
	return c.Hysteria2, nil
}

func (c *NodeConfig) AsVMess() (*VMessConfig, error) {
	if c.Type != VMess {
		return nil, c.mismatch(VMess)
	}
	return c.VMess, nil
}

func (c *NodeConfig) AsAnyTLS() (*AnyTLSConfig, error) {
	if c.Type != AnyTLS {
		return nil, c.mismatch(AnyTLS)
	}
	return c.AnyTLS, nil
}

func (c *NodeConfig) AsTuic() (*TuicConfig, error) {
	if c.Type != Tuic {
		return nil, c.mismatch(Tuic)
	}
	return c.Tuic, nil
}

// parseNodeConfig decodes data into the variant matching nodeType.
func parseNodeConfig(nodeType NodeType, data []byte) (*NodeConfig, error) {
	cfg := &NodeConfig{Type: nodeType}
	var dst any
	switch nodeType {
	case Trojan:
		cfg.Trojan = &TrojanConfig{}
		dst = cfg.Trojan
	case Shadowsocks:
		cfg.Shadowsocks = &ShadowsocksConfig{}
		dst = cfg.Shadowsocks
	case Hysteria:
		cfg.Hysteria = &HysteriaConfig{}
		dst = cfg.Hysteria
	case Hysteria2:
		cfg.Hysteria2 = &Hysteria2Config{}
		dst = cfg.Hysteria2
	case VMess:
		cfg.VMess = &VMessConfig{}
		dst = cfg.VMess
	case AnyTLS:
		cfg.AnyTLS = &AnyTLSConfig{}
		dst = cfg.AnyTLS
	case Tuic:
		cfg.Tuic = &TuicConfig{}
		dst = cfg.Tuic
	default:
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", nodeType, err)
	}
	return cfg, nil
}

// ParseRawConfig decodes a raw `{"data": ...}` envelope body, such as the
// one returned by RawConfig, into a typed NodeConfig.
func ParseRawConfig(nodeType NodeType, data []byte) (*NodeConfig, error) {
	var envelope apiResponse[json.RawMessage]
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, parseError("", fmt.Errorf("decode config envelope: %w", err))
	}
	cfg, err := parseNodeConfig(nodeType, envelope.Data)
	if err != nil {
		return nil, parseError("", err)
	}
	return cfg, nil
}
