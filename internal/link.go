package internal

// DependencyLink is the subscription a computed node holds on one of its parents.
type DependencyLink struct {
	dep *Node
	sub *Computed

	callback *Callback
}

func (l *DependencyLink) unlink() {
	l.dep.Unsubscribe(l.callback)
}
