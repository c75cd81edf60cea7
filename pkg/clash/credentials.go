package clash

// Credential is one developer portal login
type Credential struct {
	email    string
	password string
}

// NewCredential creates a credential value
func NewCredential(email, password string) Credential {
	return Credential{email: email, password: password}
}

func (c Credential) Email() string    { return c.email }
func (c Credential) Password() string { return c.password }

// String never includes the password
func (c Credential) String() string {
	return c.email
}

// Credentials is an ordered, immutable set of logins. The first one is used
// for the session.
type Credentials struct {
	items []Credential
}

// All returns a copy of the stored credentials in insertion order
func (c *Credentials) All() []Credential {
	if c == nil {
		return nil
	}
	out := make([]Credential, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Credentials) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// First returns the active credential
func (c *Credentials) First() (Credential, bool) {
	if c == nil || len(c.items) == 0 {
		return Credential{}, false
	}
	return c.items[0], true
}

// CredentialsBuilder accumulates credentials before freezing them
type CredentialsBuilder struct {
	items []Credential
}

func NewCredentialsBuilder() *CredentialsBuilder {
	return &CredentialsBuilder{}
}

// Add appends a login and returns the builder for chaining
func (b *CredentialsBuilder) Add(email, password string) *CredentialsBuilder {
	b.items = append(b.items, NewCredential(email, password))
	return b
}

// Build returns a store holding a snapshot of the added credentials.
// Later Add calls do not change stores already built.
func (b *CredentialsBuilder) Build() *Credentials {
	items := make([]Credential, len(b.items))
	copy(items, b.items)
	return &Credentials{items: items}
}
