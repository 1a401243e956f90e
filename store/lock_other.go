//go:build !unix

package store

// Without flock only the in-process mutex guards a collection.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
