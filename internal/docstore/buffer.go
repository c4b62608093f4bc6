package docstore

import "fmt"

// Buffer tracks the read set and pending writes of one transaction attempt.
// Backends embed it to satisfy Writer.
type Buffer struct {
	reads  map[string]Snapshot
	writes []Write
}

func NewBuffer() *Buffer {
	return &Buffer{reads: make(map[string]Snapshot)}
}

// BeforeRead enforces reads-before-writes and validates the path.
func (b *Buffer) BeforeRead(path string) error {
	if len(b.writes) > 0 {
		return ErrReadAfterWrite
	}
	if !ValidPath(path) {
		return fmt.Errorf("docstore: invalid document path %q", path)
	}
	return nil
}

// Record adds a snapshot to the read set. The first read of a path wins so
// that commit validation compares against what the callback actually saw.
func (b *Buffer) Record(s Snapshot) {
	if _, ok := b.reads[s.Path]; ok {
		return
	}
	s.Data = DeepCopy(s.Data)
	b.reads[s.Path] = s
}

// Cached returns a snapshot already read in this attempt.
func (b *Buffer) Cached(path string) (Snapshot, bool) {
	s, ok := b.reads[path]
	if !ok {
		return Snapshot{}, false
	}
	s.Data = DeepCopy(s.Data)
	return s, true
}

// Reads exposes the read set.
func (b *Buffer) Reads() map[string]Snapshot {
	return b.reads
}

// Writes exposes the buffered writes in call order.
func (b *Buffer) Writes() []Write {
	return b.writes
}

func (b *Buffer) Set(path string, data any) error {
	if !ValidPath(path) {
		return fmt.Errorf("docstore: invalid document path %q", path)
	}
	w, err := newSetWrite(path, data)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, w)
	return nil
}

func (b *Buffer) SetMerge(path string, data any) error {
	if !ValidPath(path) {
		return fmt.Errorf("docstore: invalid document path %q", path)
	}
	w, err := newMergeWrite(path, data)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, w)
	return nil
}

func (b *Buffer) Update(path string, fields map[string]any) error {
	if !ValidPath(path) {
		return fmt.Errorf("docstore: invalid document path %q", path)
	}
	w, err := newUpdateWrite(path, fields)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, w)
	return nil
}
