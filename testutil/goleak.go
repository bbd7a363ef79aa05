package testutil

import "go.uber.org/goleak"

// GoleakOptions is a common list of options to pass to goleak. This is useful
// when there is a background goroutine started by a dependency that outlives
// a single test.
var GoleakOptions = []goleak.Option{
	// miniredis peers can still be draining when a test returns.
	goleak.IgnoreAnyFunction("github.com/alicebob/miniredis/v2/server.(*Server).servePeer"),
}
