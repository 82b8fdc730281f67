package empty

type Gone struct {
	Name string
}
