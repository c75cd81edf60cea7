package clash

import (
	"context"

	"go.uber.org/zap"
)

// Account ties a logged in session to its credentials and cached keys
type Account struct {
	Credentials *Credentials
	Session     *Session
	Keys        *KeySet
}

// OpenAccount logs in and fetches the key list. When the list cannot be
// fetched the new session is logged out again before the error is returned.
func OpenAccount(ctx context.Context, sessions *SessionManager, creds *Credentials) (*Account, error) {
	session, err := sessions.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	keys, err := sessions.ListKeys(ctx, session)
	if err != nil {
		if _, logoutErr := sessions.Logout(ctx, session); logoutErr != nil {
			sessions.logger.Warn("logout after failed key list", zap.Error(logoutErr))
		}
		return nil, err
	}

	return &Account{
		Credentials: creds,
		Session:     session,
		Keys:        keys,
	}, nil
}

// Token is the temporary bearer token of the session
func (a *Account) Token() string {
	if a.Session == nil {
		return ""
	}
	return a.Session.Token
}
