package modelset

import (
	"fmt"
	"regexp"
	"sort"
)

// Set maps a model name to its source text.
type Set map[string]string

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the model names in lexical order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// CheckName reports whether name can be used both as a ConfigMap data key
// and as a file name inside the workload.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("model name is required")
	}
	if len(name) > 200 {
		return fmt.Errorf("model name too long (%d > 200)", len(name))
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid model name %q: use letters, digits, '_' or '-' and start with a letter or '_'", name)
	}
	return nil
}

// FileName is the data key and mounted file name for a model.
func FileName(name, ext string) string { return name + "." + ext }
