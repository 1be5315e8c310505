package auth

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Roles is a fixed-width bitmask of role memberships. Bit 0 is reserved for
// the administrative role; the consuming application allocates further bits
// through a Registry.
type Roles uint64

// RoleAdmin is the universal administrative role.
const RoleAdmin Roles = 1 << 0

// adminBit is the bit position reserved by RoleAdmin.
const adminBit = 0

// Has reports whether r contains every role in other.
func (r Roles) Has(other Roles) bool { return r&other == other }

// Registry maps role names to bits. Encode and Decode are pure inverses over
// the registered names: Decode(Encode(s)) equals s intersected with the
// registered name set, regardless of order.
type Registry struct {
	bits  map[string]Roles
	names map[Roles]string
}

// NewRegistry returns a registry with the built-in "admin" role on bit 0.
func NewRegistry() *Registry {
	r := &Registry{
		bits:  make(map[string]Roles),
		names: make(map[Roles]string),
	}
	r.bits["admin"] = RoleAdmin
	r.names[RoleAdmin] = "admin"
	return r
}

// Register maps name to the given bit position. Bit 0 is reserved for
// "admin"; re-registering a taken name or bit is an error.
func (r *Registry) Register(name string, bit uint) error {
	if name == "" {
		return fmt.Errorf("role name is empty")
	}
	if bit == adminBit {
		return fmt.Errorf("bit 0 is reserved for the admin role")
	}
	if bit >= 64 {
		return fmt.Errorf("role bit %d out of range", bit)
	}
	mask := Roles(1) << bit
	if existing, ok := r.bits[name]; ok && existing != mask {
		return fmt.Errorf("role %q already registered", name)
	}
	if existing, ok := r.names[mask]; ok && existing != name {
		return fmt.Errorf("role bit %d already taken by %q", bit, existing)
	}
	r.bits[name] = mask
	r.names[mask] = name
	return nil
}

// Encode converts a set of role names into a bitmask. Unrecognized names
// contribute no bits and are not an error.
func (r *Registry) Encode(names []string) Roles {
	var roles Roles
	for _, name := range names {
		roles |= r.bits[name]
	}
	return roles
}

// Decode converts a bitmask into a sorted set of registered role names.
// Bits with no registered name are skipped.
func (r *Registry) Decode(roles Roles) []string {
	names := make([]string, 0, len(r.names))
	for mask, name := range r.names {
		if roles&mask != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RegistryFromFile loads role allocations from a YAML file mapping role
// names to bit positions, e.g.:
//
//	hobbyist: 1
//	cataloguer: 2
//
// "admin: 0" is accepted as a no-op since the admin role is built in.
func RegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}
	var allocations map[string]uint
	if err := yaml.Unmarshal(data, &allocations); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}

	registry := NewRegistry()
	// Sorted for deterministic conflict reporting.
	names := make([]string, 0, len(allocations))
	for name := range allocations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "admin" && allocations[name] == adminBit {
			continue
		}
		if err := registry.Register(name, allocations[name]); err != nil {
			return nil, fmt.Errorf("roles file %s: %w", path, err)
		}
	}
	return registry, nil
}
