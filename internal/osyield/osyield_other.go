//go:build !linux && !darwin

package osyield

import "runtime"

func osYield() {
	runtime.Gosched()
}
