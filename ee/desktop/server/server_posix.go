//go:build !windows
// +build !windows

package server

import "net"

func listener(socketPath string) (net.Listener, error) {
	return net.Listen("unix", socketPath)
}
