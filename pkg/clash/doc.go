// Package clash provides a client for the Clash of Clans developer portal and
// statistics API.
//
// The developer portal is used to log in with an email and password, to list
// the API keys of the account and to create or revoke keys. Keys are bound to
// the public IP address of the caller. The statistics API serves read-only JSON
// documents about clans, players, wars, leagues and locations.
//
// # Authentication
//
// Logging in returns a short lived temporary token and a session cookie. The
// cookie is kept in a per-session cookie jar and replayed on every key
// management call of that session:
//
//	creds := clash.NewCredentialsBuilder().
//	    Add("dev@example.com", "secret").
//	    Build()
//
//	sessions := clash.NewSessionManager(clash.DefaultPortalConfig())
//	account, err := clash.OpenAccount(ctx, sessions, creds)
//	if err != nil {
//	    return err
//	}
//	defer sessions.Logout(ctx, account.Session)
//
// # Key Lifecycle
//
//	keys := clash.NewKeyManager(sessions, clash.NewIpifyResolver(clash.DefaultIPResolverURL, 10*time.Second))
//
//	// Create a key bound to the current public IP
//	key, err := keys.CreateKey(ctx, account, "my-bot")
//
//	// Revoke it again
//	_, err = keys.RevokeKey(ctx, account, key.ID)
//
// The key set held by an Account is a local cache. Call KeyManager.Refresh
// when the authoritative list is needed.
//
// # Statistics
//
//	client := clash.NewClient(&clash.ClientConfig{
//	    BaseURL: clash.DefaultAPIURL,
//	    Token:   key.Key,
//	})
//	clan, err := client.Clan(ctx, "#2PP")
//
// # Error Handling
//
// Every failure is returned as *APIError with a Kind from a closed set:
//
//	_, err := client.Player(ctx, tag)
//	var apiErr *clash.APIError
//	if errors.As(err, &apiErr) {
//	    switch apiErr.Kind {
//	    case clash.KindNotFound:
//	        // Unknown tag
//	    case clash.KindThrottled:
//	        // Back off
//	    }
//	}
//
// The sentinels ErrNotFound, ErrThrottled and friends match with errors.Is.
// The package never retries.
//
// # Concurrency
//
// SessionManager, KeyManager and Account are not safe for concurrent use.
// Client is safe for concurrent use once constructed.
package clash
