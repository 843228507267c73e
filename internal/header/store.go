package header

import "strings"

type entry struct {
	name    string
	value   string
	present bool
}

// Store is an ordered header block. Names are matched case-insensitively and
// rendered with the casing of their first insertion. The zero value is ready
// to use.
type Store struct {
	entries []entry
	index   map[string]int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Set stores value under name. An existing entry keeps its position and its
// original casing.
func (s *Store) Set(name, value string) {
	key := strings.ToLower(name)
	if i, ok := s.index[key]; ok {
		s.entries[i].value = value
		s.entries[i].present = true
		return
	}

	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, entry{name: name, value: value, present: true})
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (string, bool) {
	i, ok := s.index[strings.ToLower(name)]
	if !ok || !s.entries[i].present {
		return "", false
	}
	return s.entries[i].value, true
}

// Unset marks the value under name as absent. The entry keeps its slot, so a
// later Set puts it back at the same position.
func (s *Store) Unset(name string) {
	if i, ok := s.index[strings.ToLower(name)]; ok {
		s.entries[i].value = ""
		s.entries[i].present = false
	}
}

// Render returns the header block in insertion order, one "Name: value" line
// per present entry with the value passed through Encode. The result ends
// with EOL.
func (s *Store) Render() string {
	lines := make([]string, 0, len(s.entries)+1)
	for _, e := range s.entries {
		if !e.present {
			continue
		}
		lines = append(lines, e.name+": "+Encode(e.value))
	}
	lines = append(lines, "")
	return strings.Join(lines, EOL)
}

// Eat moves the header lines at the front of body into the store and returns
// what follows them. Lines are consumed up to the first empty line, which is
// dropped, or until body is exhausted. Each line is split on its first colon
// and the value is decoded before being stored.
func (s *Store) Eat(body string) string {
	lines := strings.Split(body, EOL)
	for len(lines) > 0 {
		line := lines[0]
		lines = lines[1:]
		if line == "" {
			break
		}

		name, value, _ := strings.Cut(line, ":")
		s.Set(name, Decode(strings.TrimLeft(value, " \t\r\n\x00\x0b")))
	}
	return strings.Join(lines, EOL)
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := &Store{
		entries: make([]entry, len(s.entries)),
		index:   make(map[string]int, len(s.index)),
	}
	copy(c.entries, s.entries)
	for k, v := range s.index {
		c.index[k] = v
	}
	return c
}
