package types

const maskedValue = "[masked]"

// SecretString holds a credential (provider API keys, webhook signing
// secrets, the database DSN). Its String and MarshalJSON forms are masked so
// the value never reaches logs or config dumps by accident.
type SecretString string

// String returns the masked placeholder.
func (s SecretString) String() string {
	return maskedValue
}

// GoString masks %#v output as well.
func (s SecretString) GoString() string {
	return maskedValue
}

// MarshalJSON encodes the masked placeholder.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + maskedValue + `"`), nil
}

// IsSet reports whether a non-empty value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Unmask returns the raw value. Call it only at the point the credential is
// handed to a client or driver.
func (s SecretString) Unmask() string {
	return string(s)
}
