package xref

import (
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// extractXrefStreamEntries decodes an xref stream's payload into table
// entries: the /W array gives the byte width of each of the three
// fields per record (type, field2, field3), and /Index (default
// [0 Size]) gives the object-number ranges the records cover, in
// order.
func extractXrefStreamEntries(decoded []byte, dict *object.Dict, tbl *table) error {
	w, err := intArray(dict, "W")
	if err != nil {
		return err
	}
	if len(w) != 3 {
		return pdferr.New(pdferr.InvalidXRefStream, "/W must have exactly 3 entries")
	}
	w0, w1, w2 := w[0], w[1], w[2]
	if w1 <= 0 || w2 < 0 || w0 < 0 {
		return pdferr.New(pdferr.InvalidXRefStream, "/W entries out of range")
	}
	recordLen := w0 + w1 + w2

	var index []int
	if dict.Has("Index") {
		index, err = intArray(dict, "Index")
		if err != nil {
			return err
		}
	} else {
		size, serr := object.AsNumberLenient(dict.GetOrNull("Size"))
		if serr != nil {
			return pdferr.New(pdferr.InvalidXRefStream, "xref stream has neither /Index nor /Size")
		}
		index = []int{0, int(size)}
	}
	if len(index)%2 != 0 {
		return pdferr.New(pdferr.InvalidXRefStream, "/Index must have an even number of entries")
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start := index[i]
		count := index[i+1]
		for j := 0; j < count; j++ {
			if (pos+1)*recordLen > len(decoded) {
				return pdferr.New(pdferr.InvalidXRefStream, "xref stream payload shorter than /Index promises")
			}
			rec := decoded[pos*recordLen : (pos+1)*recordLen]
			pos++

			objNum := uint32(start + j)
			typ := int64(1) // default type is 1 (in use) when w0 == 0
			if w0 > 0 {
				typ = bufToInt64(rec[:w0])
			}
			f2 := bufToInt64(rec[w0 : w0+w1])
			f3 := bufToInt64(rec[w0+w1 : w0+w1+w2])

			switch typ {
			case 0:
				tbl.setIfAbsent(objNum, entry{kind: entryFree, nextFree: uint32(f2), generation: uint16(f3)})
			case 1:
				tbl.setIfAbsent(objNum, entry{kind: entryInUse, offset: f2, generation: uint16(f3)})
			case 2:
				tbl.setIfAbsent(objNum, entry{kind: entryCompressed, streamObj: uint32(f2), indexInStream: uint32(f3)})
			default:
				// an unrecognized type byte is tolerated as "unknown",
				// leaving the slot open for an earlier /Prev section.
			}
		}
	}
	return nil
}

func bufToInt64(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intArray(dict *object.Dict, key object.Name) ([]int, error) {
	v, ok := dict.Get(key)
	if !ok {
		return nil, pdferr.Errorf(pdferr.InvalidXRefStream, "missing /%s", string(key))
	}
	arr, ok := v.(*object.Array)
	if !ok {
		return nil, pdferr.Errorf(pdferr.InvalidXRefStream, "/%s is not an array", string(key))
	}
	out := make([]int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		n, err := object.AsNumberLenient(arr.At(i))
		if err != nil {
			return nil, pdferr.Errorf(pdferr.InvalidXRefStream, "/%s entry %d is not a number", string(key), i)
		}
		out[i] = int(n)
	}
	return out, nil
}
