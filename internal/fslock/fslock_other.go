//go:build !unix

package fslock

import "os"

// Non-unix builds get no cross-process exclusion; in-process callers still
// serialize through their own mutexes.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
