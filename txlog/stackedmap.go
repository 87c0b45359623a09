// Package txlog implements a stacked, layered map that gives a staged
// mutation a read-your-own-writes view over an underlying source, with
// cheap nested checkpoints. The tree engine's transaction handle (spec
// §4.3) is built on top of this: writes made during a batch are visible to
// later reads in the same batch. Writes staged above a Push checkpoint can
// be discarded wholesale with Pop or PopTo; the tree engine itself uses a
// single layer and discards a failed batch by dropping the whole map.
package txlog

// Source looks up a key that has not been staged in the map yet.
type Source func(key interface{}) (value interface{}, found bool, err error)

type kv struct {
	key, value interface{}
}

// StackedMap is a map with Push/Pop checkpoints. Put writes to the
// top-of-stack layer; Get resolves against the stack top-down, falling
// through to Source for keys no layer has staged.
type StackedMap struct {
	src       Source
	mapList   []map[interface{}]interface{}
	journal   []kv
	journalAt []int
}

// New creates an empty StackedMap backed by src, starting at depth 1.
func New(src Source) *StackedMap {
	sm := &StackedMap{src: src}
	sm.Push()
	return sm
}

// Depth returns the number of active layers.
func (sm *StackedMap) Depth() int {
	return len(sm.mapList)
}

// Push opens a new layer on top of the stack.
func (sm *StackedMap) Push() int {
	sm.mapList = append(sm.mapList, make(map[interface{}]interface{}))
	sm.journalAt = append(sm.journalAt, len(sm.journal))
	return len(sm.mapList)
}

// Pop discards the top layer and every write it staged, restoring the
// journal to the state it was in before the layer was pushed.
func (sm *StackedMap) Pop() {
	mark := sm.journalAt[len(sm.journalAt)-1]
	sm.journalAt = sm.journalAt[:len(sm.journalAt)-1]
	sm.mapList = sm.mapList[:len(sm.mapList)-1]
	sm.journal = sm.journal[:mark]
}

// PopTo pops layers until Depth() == depth.
func (sm *StackedMap) PopTo(depth int) {
	for len(sm.mapList) > depth {
		sm.Pop()
	}
}

// Get resolves key against the stack top-down, falling through to the
// source if no layer has staged it.
func (sm *StackedMap) Get(key interface{}) (interface{}, bool, error) {
	for i := len(sm.mapList) - 1; i >= 0; i-- {
		if v, ok := sm.mapList[i][key]; ok {
			return v, true, nil
		}
	}
	return sm.src(key)
}

// Put stages key=value in the top layer and appends it to the journal.
func (sm *StackedMap) Put(key, value interface{}) {
	top := sm.mapList[len(sm.mapList)-1]
	top[key] = value
	sm.journal = append(sm.journal, kv{key, value})
}

// Journal replays every staged put, in write order, until handler returns
// false or the journal is exhausted.
func (sm *StackedMap) Journal(handler func(key, value interface{}) bool) {
	for _, e := range sm.journal {
		if !handler(e.key, e.value) {
			return
		}
	}
}
