package routing

import "fmt"

// Profile is the mobility footprint the route is planned for.
type Profile string

const (
	ProfileDefault    Profile = "default"
	ProfileWheelchair Profile = "wheelchair"
	ProfileCrutches   Profile = "crutches"
)

var profiles = map[string]Profile{
	"default":    ProfileDefault,
	"wheelchair": ProfileWheelchair,
	"crutches":   ProfileCrutches,
}

// Profiles lists the supported profiles in display order.
func Profiles() []Profile {
	return []Profile{ProfileDefault, ProfileWheelchair, ProfileCrutches}
}

// ParseProfile accepts a profile name; the empty string is the default.
func ParseProfile(s string) (Profile, error) {
	if s == "" {
		return ProfileDefault, nil
	}
	p, ok := profiles[s]
	if !ok {
		return "", fmt.Errorf("unknown mobility profile %q", s)
	}
	return p, nil
}
