// Package inventory models the hosts tasks run against.
package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

// Host is one execution target.
type Host struct {
	// Name is the hostname or address used to reach the host, and the
	// server identity used for CMDB lookups.
	Name string

	// User is the login user. Empty falls back to the transport default.
	User string

	// Port is the SSH port. Zero falls back to 22.
	Port int

	// Labels are free-form key/value pairs for host grouping.
	Labels map[string]string
}

// IsLocal reports whether the host is the machine Rex runs on.
func (h Host) IsLocal() bool {
	return h.Name == "local" || h.Name == "localhost" || h.Name == "127.0.0.1"
}

// String renders the host in target syntax.
func (h Host) String() string {
	s := h.Name
	if h.User != "" {
		s = h.User + "@" + s
	}
	if h.Port != 0 {
		s = s + ":" + strconv.Itoa(h.Port)
	}
	return s
}

// ParseTarget parses "host", "user@host" or "user@host:port".
func ParseTarget(target string) (Host, error) {
	if target == "" {
		return Host{}, fmt.Errorf("empty host target")
	}

	h := Host{Name: target}
	if at := strings.Index(h.Name, "@"); at >= 0 {
		h.User = h.Name[:at]
		h.Name = h.Name[at+1:]
		if h.User == "" {
			return Host{}, fmt.Errorf("host target %q: empty user", target)
		}
	}
	if colon := strings.LastIndex(h.Name, ":"); colon >= 0 {
		port, err := strconv.Atoi(h.Name[colon+1:])
		if err != nil || port < 1 || port > 65535 {
			return Host{}, fmt.Errorf("host target %q: invalid port", target)
		}
		h.Port = port
		h.Name = h.Name[:colon]
	}
	if h.Name == "" {
		return Host{}, fmt.Errorf("host target %q: empty hostname", target)
	}
	return h, nil
}

// ParseTargets parses a list of target strings, preserving order.
func ParseTargets(targets []string) ([]Host, error) {
	hosts := make([]Host, 0, len(targets))
	for _, t := range targets {
		h, err := ParseTarget(t)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// Group is a named, ordered host set.
type Group struct {
	Name  string
	Hosts []Host
}

// Inventory holds named host groups.
type Inventory struct {
	groups map[string]*Group
	order  []string
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{groups: make(map[string]*Group)}
}

// AddGroup registers a group, replacing any previous one with that name.
func (inv *Inventory) AddGroup(name string, hosts ...Host) {
	if _, ok := inv.groups[name]; !ok {
		inv.order = append(inv.order, name)
	}
	inv.groups[name] = &Group{Name: name, Hosts: hosts}
}

// Group returns a group by name.
func (inv *Inventory) Group(name string) (*Group, bool) {
	g, ok := inv.groups[name]
	return g, ok
}

// Groups returns all groups in registration order.
func (inv *Inventory) Groups() []*Group {
	out := make([]*Group, 0, len(inv.order))
	for _, name := range inv.order {
		out = append(out, inv.groups[name])
	}
	return out
}

// Resolve expands a target that is either a group name or a host target
// string into the host list it denotes.
func (inv *Inventory) Resolve(target string) ([]Host, error) {
	if g, ok := inv.groups[target]; ok {
		return append([]Host(nil), g.Hosts...), nil
	}
	h, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	return []Host{h}, nil
}
