package ring

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ParseAddresses splits a whitespace separated list of host:port endpoints.
func ParseAddresses(s string) []string {
	return strings.Fields(s)
}

// resolveAddress turns host:port into a socket address, preferring IPv4.
func resolveAddress(address string) (unix.Sockaddr, int, error) {
	var host, service, err = net.SplitHostPort(address)
	if err != nil {
		return nil, 0, fmt.Errorf(ErrorTemplateBadAddress, address, err)
	}
	var port int
	if port, err = strconv.Atoi(service); err != nil || port <= 0 || port > 65535 {
		return nil, 0, fmt.Errorf(ErrorTemplateBadAddress, address, ErrorInvalidConfig)
	}
	var ip = net.ParseIP(host)
	if ip == nil {
		var ips []net.IP
		if ips, err = net.LookupIP(host); err != nil {
			return nil, 0, fmt.Errorf(ErrorTemplateBadAddress, address, err)
		}
		for _, candidate := range ips {
			if candidate.To4() != nil {
				ip = candidate
				break
			}
		}
		if ip == nil && len(ips) > 0 {
			ip = ips[0]
		}
		if ip == nil {
			return nil, 0, fmt.Errorf(ErrorTemplateBadAddress, address, ErrorNoAddresses)
		}
	}
	if v4 := ip.To4(); v4 != nil {
		var sa = &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa, unix.AF_INET, nil
	}
	var sa = &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}
