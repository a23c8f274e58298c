package store

import "context"

// Collection names shared by the services and the CLI.
const (
	Students   = "students"
	Attendance = "attendance"
	Activities = "activities"
)

// Collections lists every table the application bootstraps.
var Collections = []string{Students, Attendance, Activities}

// Backend persists whole-collection JSON documents by name.
//
// Mutate must give fn exclusive access to the named document for the whole
// read-modify-write; concurrent Mutate calls on one name are serialized.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Mutate(ctx context.Context, name string, fn func(doc []byte) ([]byte, error)) error
	Close() error
}

var emptyDoc = []byte("[]")
