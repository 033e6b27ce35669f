package panel

import (
	"context"
	"fmt"
)

// State is a node session's lifecycle position.
type State uint8

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateVerified
	StateUnregistering
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateVerified:
		return "verified"
	case StateUnregistering:
		return "unregistering"
	default:
		return "unknown"
	}
}

// Session is caller-held lifecycle bookkeeping for one registered node:
// Unregistered → Registering → Registered → Verified → Unregistering →
// Unregistered. The panel stays authoritative — a session never rejects a
// register id the server would accept, it only stops locally-invalid calls
// before they hit the wire. Failed remote calls leave the state untouched,
// and the session never fabricates or substitutes a register id.
//
// A Session is a plain value for one caller to thread through its calls;
// it is not safe for concurrent use.
type Session struct {
	client   *Client
	nodeType NodeType
	nodeID   int64

	registerID string
	state      State
}

// NewSession creates an Unregistered session for one node.
func NewSession(c *Client, nodeType NodeType, nodeID int64) *Session {
	return &Session{client: c, nodeType: nodeType, nodeID: nodeID}
}

// ResumeSession rebuilds a Registered session around a register id the
// caller persisted earlier. The id is trusted as-is; Verify confirms it.
func ResumeSession(c *Client, nodeType NodeType, nodeID int64, registerID string) *Session {
	return &Session{
		client:     c,
		nodeType:   nodeType,
		nodeID:     nodeID,
		registerID: registerID,
		state:      StateRegistered,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// NodeType returns the protocol this session was created for.
func (s *Session) NodeType() NodeType { return s.nodeType }

// RegisterID returns the server-issued id, empty while Unregistered.
func (s *Session) RegisterID() string { return s.registerID }

// Register announces the node and moves the session to Registered. On
// failure the session stays Unregistered and retains no partial id.
func (s *Session) Register(ctx context.Context, req RegisterRequest) error {
	if s.state != StateUnregistered {
		return fmt.Errorf("register from %s: %w", s.state, ErrInvalidState)
	}

	s.state = StateRegistering
	id, err := s.client.Register(ctx, s.nodeType, s.nodeID, req)
	if err != nil {
		s.state = StateUnregistered
		return err
	}
	s.registerID = id
	s.state = StateRegistered
	return nil
}

// Verify confirms the registration with the panel and moves the session to
// Verified. A negative answer surfaces as a server error and does not
// transition the session back to Unregistered; re-registering is the
// caller's decision.
func (s *Session) Verify(ctx context.Context) error {
	if s.state != StateRegistered && s.state != StateVerified {
		return fmt.Errorf("verify from %s: %w", s.state, ErrInvalidState)
	}

	valid, err := s.client.Verify(ctx, s.nodeType, s.registerID)
	if err != nil {
		return err
	}
	if !valid {
		return &Error{
			Kind:    KindServer,
			Message: "panel does not recognize register id",
		}
	}
	s.state = StateVerified
	return nil
}

// Unregister removes the registration. Any acknowledgment that is not a
// hard failure lands the session terminally in Unregistered.
func (s *Session) Unregister(ctx context.Context) error {
	if s.state != StateRegistered && s.state != StateVerified {
		return fmt.Errorf("unregister from %s: %w", s.state, ErrInvalidState)
	}

	prev := s.state
	s.state = StateUnregistering
	if err := s.client.Unregister(ctx, s.nodeType, s.registerID); err != nil {
		s.state = prev
		return err
	}
	s.registerID = ""
	s.state = StateUnregistered
	return nil
}

// ready gates the protocol operations on Registered or Verified.
func (s *Session) ready(op string) error {
	if s.state != StateRegistered && s.state != StateVerified {
		return fmt.Errorf("%s from %s: %w", op, s.state, ErrInvalidState)
	}
	return nil
}

// Config fetches this node's parsed configuration.
func (s *Session) Config(ctx context.Context) (*NodeConfig, error) {
	if err := s.ready("config"); err != nil {
		return nil, err
	}
	return s.client.Config(ctx, s.nodeType, s.nodeID)
}

// Users fetches this node's user list through the ETag cache.
func (s *Session) Users(ctx context.Context) ([]User, error) {
	if err := s.ready("users"); err != nil {
		return nil, err
	}
	return s.client.Users(ctx, s.nodeType, s.registerID)
}

// Submit reports a traffic batch for this node.
func (s *Session) Submit(ctx context.Context, data []UserTraffic) error {
	if err := s.ready("submit"); err != nil {
		return err
	}
	return s.client.Submit(ctx, s.nodeType, s.registerID, data)
}

// Heartbeat reports liveness for this node.
func (s *Session) Heartbeat(ctx context.Context) error {
	if err := s.ready("heartbeat"); err != nil {
		return err
	}
	return s.client.Heartbeat(ctx, s.nodeType, s.registerID)
}
