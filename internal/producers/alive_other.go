//go:build !unix

package producers

// processAlive is unknown without signals; the listing decides.
var processAlive func(pid int) bool
