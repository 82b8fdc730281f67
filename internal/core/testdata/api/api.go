package api

type Person struct {
	FullName string
	Age      int
	// note is only visible inside this package.
	note string
}

// Note returns the private note.
func (p Person) Note() string {
	return p.note
}
