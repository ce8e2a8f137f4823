package ftp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidPortArgument is returned for malformed PORT arguments.
var ErrInvalidPortArgument = errors.New("invalid PORT argument")

// ParsePortArgument decodes "h1,h2,h3,h4,p1,p2" into a host:port dial address.
// The port is big-endian: p1*256 + p2.
func ParsePortArgument(arg string) (string, error) {
	parts := strings.Split(strings.TrimSpace(arg), ",")
	if len(parts) != 6 {
		return "", ErrInvalidPortArgument
	}

	var octets [6]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return "", ErrInvalidPortArgument
		}
		octets[i] = n
	}

	ip := net.IPv4(byte(octets[0]), byte(octets[1]), byte(octets[2]), byte(octets[3]))
	port := octets[4]<<8 | octets[5]
	if port == 0 {
		return "", ErrInvalidPortArgument
	}

	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

// FormatPortArgument encodes an IPv4 TCP address as a PORT argument.
func FormatPortArgument(addr *net.TCPAddr) (string, error) {
	ip := addr.IP.To4()
	if ip == nil {
		return "", fmt.Errorf("%w: %s is not IPv4", ErrInvalidPortArgument, addr.IP)
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], addr.Port>>8, addr.Port&0xff), nil
}
