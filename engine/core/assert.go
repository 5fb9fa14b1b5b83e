package core

import (
	"fmt"
	"runtime"
)

// Assertf panics with the caller's file and line when the condition does not
// hold. It is reserved for programmer-contract violations: oversized transient
// allocations, double destruction, lookups of unknown bindings. These are
// caller bugs, not environmental conditions, so they are not recoverable
// errors.
func Assertf(condition bool, msg string, args ...interface{}) {
	if condition {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	m := fmt.Sprintf(msg, args...)
	LogError("assertion failed (%s:%d): %s", file, line, m)
	panic(fmt.Sprintf("assertion failed (%s:%d): %s", file, line, m))
}

// CheckDeviceErr handles fatal device errors. Under verified-calls mode a
// failed device call is logged with the caller's file and line and trips an
// assertion, reflecting that such failures are unrecoverable at runtime.
// Outside verified-calls mode the error is logged and returned to the caller.
func CheckDeviceErr(verify bool, err error) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	LogError("device error (%s:%d): %s", file, line, err)
	if verify {
		panic(fmt.Sprintf("device error (%s:%d): %s", file, line, err))
	}
	return err
}
