package cyclesrc

type Source struct {
	When string
}
