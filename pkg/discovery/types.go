// Package discovery advertises robots on the local network via mDNS/DNS-SD
// and finds them from a controller.
package discovery

import (
	"net"
	"strconv"
	"strings"
)

// ServiceName is the DNS-SD service type of the robot API.
const ServiceName = "_legobot._tcp"

// Domain is the mDNS browsing domain.
const Domain = "local."

// Info is what a robot advertises about itself.
type Info struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Profile string   `json:"profile"`
	Devices []string `json:"devices"`
	Port    int      `json:"port"`
}

// Robot is a robot found on the network.
type Robot struct {
	Info
	Host string   `json:"host"`
	IPs  []net.IP `json:"ips"`
}

// Address returns host:port for connecting to the robot, preferring an IP.
func (r *Robot) Address() string {
	host := strings.TrimSuffix(r.Host, ".")
	if len(r.IPs) > 0 {
		host = r.IPs[0].String()
	}
	return net.JoinHostPort(host, strconv.Itoa(r.Port))
}

// txtRecords encodes info as DNS-SD TXT records
func txtRecords(info Info) []string {
	return []string{
		"id=" + info.ID,
		"profile=" + info.Profile,
		"devices=" + strings.Join(info.Devices, ","),
	}
}

// parseTXT fills the advertised fields of info from TXT records
func parseTXT(info *Info, txt []string) {
	for _, rec := range txt {
		key, value, ok := strings.Cut(rec, "=")
		if !ok {
			continue
		}
		switch key {
		case "id":
			info.ID = value
		case "profile":
			info.Profile = value
		case "devices":
			info.Devices = nil
			if value != "" {
				info.Devices = strings.Split(value, ",")
			}
		}
	}
}
