package config

// ConfigBackend is where non-secret keys persist between runs: a JSON file on
// Linux, the com.tutord.app defaults domain on macOS. Bool keys are stored as
// "true"/"false" strings.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
