package panel

// RegisterRequest is the payload for Register. NodeIP is optional and
// omitted from the wire when empty.
type RegisterRequest struct {
	Hostname string `json:"hostname"`
	Port     uint16 `json:"port"`
	NodeIP   string `json:"node_ip,omitempty"`
}

// User is one entry of a node's user list.
type User struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`
}

// UserTraffic is one user's upload/download delta for a Submit batch.
// Field names follow the panel wire format: u/d are bytes, n is the
// connection count.
type UserTraffic struct {
	UserID   int64 `json:"user_id"`
	Upload   int64 `json:"u"`
	Download int64 `json:"d"`
	Count    int64 `json:"n"`
}

// TrafficStats is an aggregated per-node request report for SubmitStats.
type TrafficStats struct {
	Count        int64           `json:"count"`
	Requests     int64           `json:"requests"`
	UserIDs      []int64         `json:"user_ids"`
	UserRequests map[int64]int64 `json:"user_requests,omitempty"`
}

// AddUser records one user's request count in the aggregate.
func (s *TrafficStats) AddUser(userID, requests int64) {
	if s.UserRequests == nil {
		s.UserRequests = make(map[int64]int64)
	}
	s.UserIDs = append(s.UserIDs, userID)
	s.UserRequests[userID] = requests
	s.Requests += requests
	s.Count++
}

// UsersResult pairs a user list with the ETag the panel attached to it.
type UsersResult struct {
	Users []User
	ETag  string
}

// apiResponse is the panel's standard success envelope.
type apiResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type registerData struct {
	RegisterID string `json:"register_id"`
}

type verifyData struct {
	Valid bool `json:"valid"`
}

type verifyRequest struct {
	RegisterID string `json:"register_id"`
}

type heartbeatRequest struct {
	RegisterID string `json:"register_id"`
	NodeIP     string `json:"node_ip,omitempty"`
}

type submitRequest struct {
	RegisterID string        `json:"register_id"`
	Data       []UserTraffic `json:"data"`
}

type submitStatsRequest struct {
	RegisterID string       `json:"register_id"`
	Data       TrafficStats `json:"data"`
}
