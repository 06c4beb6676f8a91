package addrs

import (
	"fmt"
	"strings"
)

// Resource is the unique address of a managed resource: type + name.
// The string form is "type.name", e.g. "local_file.motd".
type Resource struct {
	Type string
	Name string
}

func (r Resource) String() string {
	return r.Type + "." + r.Name
}

// Provider returns the provider prefix of the resource type.
// "local_file" -> "local", "http_resource" -> "http".
// Types without an underscore map to a provider of the same name.
func (r Resource) Provider() string {
	if i := strings.Index(r.Type, "_"); i > 0 {
		return r.Type[:i]
	}
	return r.Type
}

// ParseResource parses the "type.name" string form.
func ParseResource(s string) (Resource, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Resource{}, fmt.Errorf("invalid resource address %q: expected format is type.name", s)
	}
	return Resource{Type: parts[0], Name: parts[1]}, nil
}
