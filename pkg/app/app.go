// Package app defines the contract shared by the cmd/* entrypoints: the sync
// daemon and the tenant API each expose a Runner that owns its process lifetime.
package app

// Runner runs an application until it is shut down.
type Runner interface {
	Run() error
}
