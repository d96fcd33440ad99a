package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// TempPath returns a unique path under /tmp for
// a store of the given kind
func TempPath(kind string) string {
	return "/tmp/" + kind + "-" + MustUUID()
}
