package window

import "github.com/google/btree"

// Index is an ordered set of windows, used to track the active windows of a key.
type Index struct {
	tree *btree.BTreeG[Window]
}

func NewIndex() *Index {
	return &Index{tree: btree.NewG[Window](8, func(a, b Window) bool { return a.Less(b) })}
}

// Insert adds w and reports whether it was not present yet.
func (i *Index) Insert(w Window) bool {
	_, replaced := i.tree.ReplaceOrInsert(w)
	return !replaced
}

func (i *Index) Delete(w Window) bool {
	_, ok := i.tree.Delete(w)
	return ok
}

func (i *Index) Has(w Window) bool {
	return i.tree.Has(w)
}

func (i *Index) Len() int {
	return i.tree.Len()
}

// Ascend calls fn on every window in order until fn returns false.
func (i *Index) Ascend(fn func(w Window) bool) {
	i.tree.Ascend(fn)
}

// Windows returns the indexed windows in order.
func (i *Index) Windows() []Window {
	windows := make([]Window, 0, i.tree.Len())
	i.tree.Ascend(func(w Window) bool {
		windows = append(windows, w)
		return true
	})
	return windows
}

// Overlapping returns the indexed windows that overlap w, in order.
func (i *Index) Overlapping(w Window) []Window {
	var windows []Window
	// every window starting before w ends sorts before this pivot
	pivot := Window{start: w.end, end: w.end}
	i.tree.AscendLessThan(pivot, func(item Window) bool {
		if item.start < w.end && item.Overlaps(w) {
			windows = append(windows, item)
		}
		return true
	})
	return windows
}
