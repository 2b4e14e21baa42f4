package domain

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordHasher turns a plaintext password into a one-way hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Credential holds either a stored hash or a freshly set plaintext waiting to be sealed.
// The plaintext never leaves this type except through the hasher.
type Credential struct {
	hash     string
	plain    string
	modified bool
}

// StoredCredential wraps a hash loaded from storage. It is never re-hashed.
func StoredCredential(hash string) Credential {
	return Credential{hash: hash}
}

// Set replaces the password and marks it modified.
func (c *Credential) Set(plain string) {
	c.plain = plain
	c.modified = true
}

// Modified reports whether a new plaintext is pending.
func (c Credential) Modified() bool {
	return c.modified
}

// Hash returns the stored hash, empty when none exists yet.
func (c Credential) Hash() string {
	return c.hash
}

// IsZero reports whether neither a hash nor a pending password is present.
func (c Credential) IsZero() bool {
	return c.hash == "" && !c.modified
}

// NewCredential returns a credential holding plain, pending a Seal.
func NewCredential(plain string) Credential {
	c := Credential{}
	c.Set(plain)
	return c
}

// Seal hashes a pending plaintext. It is a no-op for unmodified credentials.
// On failure the credential keeps its previous state.
func (c *Credential) Seal(hasher PasswordHasher) error {
	if !c.modified {
		return nil
	}
	if len(c.plain) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	hashed, err := hasher.Hash(c.plain)
	if err != nil {
		return err
	}
	c.hash = hashed
	c.plain = ""
	c.modified = false
	return nil
}

// String never reveals credential material.
func (c Credential) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v output redacted as well.
func (c Credential) GoString() string {
	return "domain.Credential{[REDACTED]}"
}
