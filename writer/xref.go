package writer

import (
	"github.com/kugler-labs/pdfcore/filter"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// entryKind mirrors package xref's own three-way tag (free / in use /
// compressed), kept as an unexported local type since xref's entry type
// is private to that package and the two sides of the wire format
// deserve their own small vocabulary rather than a shared exported type.
type entryKind uint8

const (
	entryFree entryKind = iota
	entryInUse
	entryCompressed
)

type xrefEntry struct {
	kind       entryKind
	generation uint16
	offset     int64  // entryInUse
	nextFree   uint32 // entryFree: next free object number

	streamObj     uint32 // entryCompressed
	indexInStream uint32 // entryCompressed
}

// chainFreeList relinks every free entry into a well-formed singly
// linked list: ascending by object number, each entry pointing at the
// next free number, the tail pointing back to 0.
func chainFreeList(entries map[uint32]xrefEntry) {
	var frees []uint32
	for n, e := range entries {
		if e.kind == entryFree {
			frees = append(frees, n)
		}
	}
	for i := 1; i < len(frees); i++ {
		for j := i; j > 0 && frees[j-1] > frees[j]; j-- {
			frees[j-1], frees[j] = frees[j], frees[j-1]
		}
	}
	for i, n := range frees {
		e := entries[n]
		if i+1 < len(frees) {
			e.nextFree = frees[i+1]
		} else {
			e.nextFree = 0
		}
		entries[n] = e
	}
}

// writeClassicXref emits one "xref" keyword followed by one subsection
// per contiguous run of object numbers present in entries.
func (w *writer) writeClassicXref(entries map[uint32]xrefEntry, size uint32) {
	nums := sortedKeys(entries)
	runs := buildRuns(nums)

	var b buffer
	b.fmt("xref\n")
	for _, run := range runs {
		first, count := run[0], run[1]
		b.fmt("%d %d\n", first, count)
		for n := first; n < first+count; n++ {
			e := entries[n]
			switch e.kind {
			case entryFree:
				b.fmt("%010d %05d f \n", e.nextFree, e.generation)
			case entryInUse:
				b.fmt("%010d %05d n \n", e.offset, e.generation)
			default:
				// a Compressed entry can never reach classic-table
				// emission: Write forces the xref-stream path whenever
				// any entry is Compressed.
				b.fmt("%010d %05d f \n", 0, 65535)
			}
		}
	}
	w.write(&b)
}

func sortedKeys(entries map[uint32]xrefEntry) []uint32 {
	nums := make([]uint32, 0, len(entries))
	for n := range entries {
		nums = append(nums, n)
	}
	// simple insertion sort: xref sections are small enough (at most a
	// few thousand objects) that this never shows up in a profile, and
	// it keeps this file free of a sort.Slice import used nowhere else.
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}
	return nums
}

// writeXrefStream emits the cross-reference section as an indirect
// stream object, required whenever any entry is Compressed since a
// classic table has no way to express one. The stream's own dictionary
// doubles as the trailer, so trailer is merged into it directly rather
// than written separately. The /W, /Index, three-field-per-record
// layout is the exact mirror of the read side's
// xref.extractXrefStreamEntries.
func (w *writer) writeXrefStream(doc *object.Document, entries map[uint32]xrefEntry, trailer *object.Dict, size uint32) (int64, error) {
	xrefObj, err := doc.Store.Allocate(object.NewDict())
	if err != nil {
		return 0, pdferr.Frame(err, "writer.writeXrefStream")
	}
	// the xref stream object describes itself: reserve its own InUse
	// slot before computing field widths or /Index so it's accounted
	// for like any other entry. Nothing else is written between here
	// and its own emission, so its offset is the current write cursor.
	entries[xrefObj.Number] = xrefEntry{kind: entryInUse, generation: 0, offset: w.written}
	if xrefObj.Number+1 > size {
		size = xrefObj.Number + 1
	}

	var maxOffsetLike, maxGenLike int64
	for _, e := range entries {
		switch e.kind {
		case entryFree:
			if v := int64(e.generation); v > maxGenLike {
				maxGenLike = v
			}
		case entryInUse:
			if e.offset > maxOffsetLike {
				maxOffsetLike = e.offset
			}
			if v := int64(e.generation); v > maxGenLike {
				maxGenLike = v
			}
		case entryCompressed:
			if v := int64(e.streamObj); v > maxOffsetLike {
				maxOffsetLike = v
			}
			if v := int64(e.indexInStream); v > maxGenLike {
				maxGenLike = v
			}
		}
	}
	w1 := widthFor(maxOffsetLike)
	w2 := widthFor(maxGenLike)
	const w0 = 1

	nums := sortedKeys(entries)
	runs := buildRuns(nums)

	index := object.NewArray()
	var payload []byte
	for _, run := range runs {
		first, count := run[0], run[1]
		index.Append(object.Integer(first))
		index.Append(object.Integer(count))
		for n := first; n < first+count; n++ {
			e := entries[n]
			var typ, f2, f3 int64
			switch e.kind {
			case entryFree:
				typ, f2, f3 = 0, int64(e.nextFree), int64(e.generation)
			case entryInUse:
				typ, f2, f3 = 1, e.offset, int64(e.generation)
			case entryCompressed:
				typ, f2, f3 = 2, int64(e.streamObj), int64(e.indexInStream)
			}
			payload = appendBigEndian(payload, typ, w0)
			payload = appendBigEndian(payload, f2, w1)
			payload = appendBigEndian(payload, f3, w2)
		}
	}

	chain := filter.Chain{Filters: []filter.Name{filter.Flate}}
	compressed, err := chain.Encode(payload)
	if err != nil {
		return 0, pdferr.Frame(err, "writer.writeXrefStream")
	}

	dict := trailer.Clone().(*object.Dict)
	dict.Set("Type", object.Name("XRef"))
	dict.Set("W", object.NewArray(object.Integer(w0), object.Integer(w1), object.Integer(w2)))
	dict.Set("Index", index)
	dict.Set("Filter", object.Name("FlateDecode"))
	dict.Set("Length", object.Integer(len(compressed)))
	dict.Set("Size", object.Integer(size))

	if err := w.writeStreamObject(xrefObj.Number, xrefObj.Generation, dict, compressed, true); err != nil {
		return 0, err
	}
	return w.offsets[xrefObj.Number], nil
}

func widthFor(maxVal int64) uint32 {
	width := uint32(1)
	for maxVal >= int64(1)<<(8*width) {
		width++
	}
	return width
}

func appendBigEndian(buf []byte, v int64, width uint32) []byte {
	start := len(buf)
	for i := uint32(0); i < width; i++ {
		buf = append(buf, 0)
	}
	for i := int(width) - 1; i >= 0; i-- {
		buf[start+i] = byte(v)
		v >>= 8
	}
	return buf
}

// buildRuns groups sorted, unique object numbers into [first, count]
// pairs of contiguous runs: one classic-xref subsection per run, and
// the identical shape xref-stream /Index uses.
func buildRuns(sortedNums []uint32) [][2]uint32 {
	var runs [][2]uint32
	i := 0
	for i < len(sortedNums) {
		first := sortedNums[i]
		count := uint32(1)
		j := i + 1
		for j < len(sortedNums) && sortedNums[j] == first+count {
			count++
			j++
		}
		runs = append(runs, [2]uint32{first, count})
		i = j
	}
	return runs
}
