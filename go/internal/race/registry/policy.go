package registry

import "fmt"

// Policy decides how far the registry trusts what a connection asserts.
type Policy int

const (
	// PolicyPermissive accepts start-game from any member and relays progress
	// for any participant id.
	PolicyPermissive Policy = iota
	// PolicyStrict requires the caller to own the host id to start a race and
	// to own the participant id it reports progress for.
	PolicyStrict
)

func (p Policy) String() string {
	switch p {
	case PolicyPermissive:
		return "permissive"
	case PolicyStrict:
		return "strict"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "permissive":
		return PolicyPermissive, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return PolicyPermissive, fmt.Errorf("unknown room auth policy %q", s)
	}
}
