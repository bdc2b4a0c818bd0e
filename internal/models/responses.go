package models

import "time"

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// LoginRequest represents dashboard login credentials
// @Description Login request payload
type LoginRequest struct {
	Username string `json:"username" example:"owner"`
	Password string `json:"password" example:"secret"`
}

// LoginResponse represents the result of a login attempt
// @Description Login response payload
type LoginResponse struct {
	Success bool   `json:"success" example:"true"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty" example:""`
}

// ErrorResponse is returned for request-level failures (bad input, auth)
// @Description Error response payload
type ErrorResponse struct {
	Error string `json:"error" example:"invalid range"`
}
