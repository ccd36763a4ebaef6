package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shiftbd/agenthub/internal/config"
	"github.com/shiftbd/agenthub/internal/notify"
)

// tokenAuthenticator resolves handshake credentials to identities. The
// admin console presents the shared admin token; user connections
// present the user id the upstream session layer resolved for them.
// Issuing and hashing credentials is that layer's job, not ours.
type tokenAuthenticator struct {
	adminToken string
}

func NewAuthenticator(cfg config.Config) notify.Authenticator {
	return &tokenAuthenticator{adminToken: cfg.AdminToken}
}

func (a *tokenAuthenticator) Authenticate(credential, role string) (notify.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return notify.Identity{}, notify.ErrUnauthorized
	}

	if role == "admin" {
		if a.adminToken == "" || credential != a.adminToken {
			return notify.Identity{}, notify.ErrUnauthorized
		}
		return notify.Identity{Admin: true}, nil
	}

	userID, err := snowflake.ParseString(credential)
	if err != nil || userID == 0 {
		return notify.Identity{}, notify.ErrUnauthorized
	}
	return notify.Identity{UserID: userID.String()}, nil
}
