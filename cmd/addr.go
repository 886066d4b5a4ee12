package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// validateAddr checks that addr is a usable host:port bind address.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				return fmt.Errorf("invalid host: %s", host)
			}
		}
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port: %s", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port out of range: %d", n)
	}
	return nil
}
