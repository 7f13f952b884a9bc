package core

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Host is a monitored machine logs are attributed to.
type Host struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id" validate:"required"`
	Hostname  string    `json:"hostname,omitempty" validate:"max=255"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHost creates a host for the given account.
func NewHost(accountID, hostname, ipAddress string) *Host {
	return &Host{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Hostname:  hostname,
		IPAddress: ipAddress,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate performs validation on the host.
func (h *Host) Validate() error {
	if h.AccountID == "" {
		return fmt.Errorf("host account ID is required")
	}
	if h.Hostname == "" && h.IPAddress == "" {
		return fmt.Errorf("host needs a hostname or an IP address")
	}
	if h.IPAddress != "" && net.ParseIP(h.IPAddress) == nil {
		return fmt.Errorf("invalid host IP address: %s", h.IPAddress)
	}
	return nil
}
