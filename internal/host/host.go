// Package host resolves which container engine a pass talks to.
package host

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/docker/client"
)

// EnvOverrideHost is consulted when no host is given explicitly.
const EnvOverrideHost = "DOCKER_HOST"

// DefaultHost is the local engine socket.
const DefaultHost = "unix:///var/run/docker.sock"

// Host is a resolved engine address.
type Host struct {
	URL string
	// SSH is set when the engine is reached over ssh.
	SSH *SSH
}

// SSH addresses a remote host. Port and User are optional.
type SSH struct {
	Hostname string
	Port     int
	User     string
}

// Destination renders the ssh destination, "user@hostname" or "hostname".
func (s SSH) Destination() string {
	if s.User == "" {
		return s.Hostname
	}
	return s.User + "@" + s.Hostname
}

// Resolve picks override, then $DOCKER_HOST, then DefaultHost and parses it.
func Resolve(override string) (Host, error) {
	raw := override
	if raw == "" {
		raw = os.Getenv(EnvOverrideHost)
	}
	if raw == "" {
		raw = DefaultHost
	}
	return Parse(raw)
}

// Parse parses an engine URL such as unix:///var/run/docker.sock,
// tcp://10.0.0.2:2376 or ssh://deploy@example.com:2222.
func Parse(raw string) (Host, error) {
	u, err := client.ParseHostURL(raw)
	if err != nil {
		return Host{}, fmt.Errorf("unable to parse docker host URL %q: %w", raw, err)
	}

	h := Host{URL: raw}
	if u.Scheme != "ssh" {
		return h, nil
	}
	if u.Hostname() == "" {
		return Host{}, fmt.Errorf("docker host URL %q has no hostname", raw)
	}
	h.SSH = &SSH{Hostname: u.Hostname(), User: u.User.Username()}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Host{}, fmt.Errorf("invalid port in docker host URL %q: %w", raw, err)
		}
		h.SSH.Port = port
	}
	return h, nil
}

// ParseSSH parses an ssh destination given either as ssh://[user@]host[:port]
// or in the short [user@]host form.
func ParseSSH(target string) (SSH, error) {
	raw := target
	if !strings.Contains(raw, "://") {
		raw = "ssh://" + raw
	}
	h, err := Parse(raw)
	if err != nil {
		return SSH{}, err
	}
	if h.SSH == nil {
		return SSH{}, fmt.Errorf("%q is not an ssh destination", target)
	}
	return *h.SSH, nil
}
