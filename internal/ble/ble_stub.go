//go:build !linux

package ble

import "fmt"

func startStack(string, func(int, []byte)) (stopFunc, error) {
	return nil, fmt.Errorf("ble peripheral not supported on this platform")
}
