package xref

import (
	"bytes"
	"io"
	"strconv"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// readAt reads exactly n bytes starting at offset, tolerating a short
// final read (a truncated file simply yields fewer trailing bytes).
func readAt(rs io.ReadSeeker, offset int64, n int) ([]byte, error) {
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		return nil, pdferr.Errorf(pdferr.Io, "seek to %d: %w", offset, err)
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(rs, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, pdferr.Errorf(pdferr.Io, "read at %d: %w", offset, err)
	}
	return buf[:read], nil
}

// scanMagic searches forward from
// byte 0 for "%PDF-M.m", tolerating a preamble before it (some
// generators and some MIME-multipart extractions prepend bytes). The
// offset found is added back to every InUse offset read from the xref
// table, so the rest of the resolver can otherwise pretend the PDF
// starts at byte 0.
func scanMagic(rs io.ReadSeeker, fileSize int64, strict bool) (magicOffset int64, version string, err error) {
	window := fileSize
	if window > 2048 {
		window = 2048
	}
	buf, err := readAt(rs, 0, int(window))
	if err != nil {
		return 0, "", err
	}
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx == -1 {
		return 0, "", pdferr.New(pdferr.NoPdfFile, "no %PDF- header found")
	}
	if strict && idx != 0 {
		return 0, "", pdferr.Errorf(pdferr.NoPdfFile, "%%PDF- header not at byte 0 (found at %d)", idx)
	}
	rest := buf[idx+len("%PDF-"):]
	end := bytes.IndexAny(rest, "\r\n")
	if end == -1 || end > 8 {
		end = 8
		if end > len(rest) {
			end = len(rest)
		}
	}
	return int64(idx), string(rest[:end]), nil
}

// scanEOF: in strict mode the file must end with "%%EOF"; otherwise
// search backward for the last occurrence and record how many trailing
// bytes follow it.
func scanEOF(rs io.ReadSeeker, fileSize int64, strict bool) (trailingGarbageLen int64, err error) {
	window := fileSize
	if window > 2048 {
		window = 2048
	}
	buf, err := readAt(rs, fileSize-window, int(window))
	if err != nil {
		return 0, err
	}
	if strict {
		trimmed := bytes.TrimRight(buf, "\r\n \t")
		if !bytes.HasSuffix(trimmed, []byte("%%EOF")) {
			return 0, pdferr.New(pdferr.NoEOFToken, "file does not end with %%EOF")
		}
		return int64(len(buf)) - int64(bytes.LastIndex(buf, []byte("%%EOF"))) - 5, nil
	}
	idx := bytes.LastIndex(buf, []byte("%%EOF"))
	if idx == -1 {
		return 0, pdferr.New(pdferr.NoEOFToken, "no %%EOF marker found")
	}
	trailing := int64(len(buf)) - int64(idx) - 5
	if trailing > 1024 {
		return trailing, pdferr.Errorf(pdferr.NoEOFToken, "%d bytes of garbage after %%%%EOF exceeds the 1024-byte tolerance", trailing)
	}
	return trailing, nil
}

// rescanForXref recovers from a stale startxref offset (pointing past
// the end of the file): it locates the last "xref" keyword in the file
// and returns its offset, relative to the %PDF- magic bytes.
func rescanForXref(rs io.ReadSeeker, fileSize, magicOffset int64) (int64, error) {
	buf, err := readAt(rs, 0, int(fileSize))
	if err != nil {
		return 0, err
	}
	for end := len(buf); end > 0; {
		idx := bytes.LastIndex(buf[:end], []byte("xref"))
		if idx <= 0 {
			break
		}
		end = idx
		// keyword check: "xref" must stand alone, not be the tail of
		// "startxref" or part of a name like /XRefStm.
		if !isPDFWhitespaceByte(buf[idx-1]) {
			continue
		}
		if int64(idx) < magicOffset {
			break
		}
		return int64(idx) - magicOffset, nil
	}
	return 0, pdferr.New(pdferr.NoXRef, "no xref keyword found while recovering from a stale startxref")
}

func isPDFWhitespaceByte(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

// scanStartXref scans backward at most startxrefScanWindow bytes,
// before any trailing garbage, looking for "startxref <offset>".
// Accepts the "startref" typo in non-strict mode.
func scanStartXref(rs io.ReadSeeker, fileSize, trailingGarbageLen int64, strict bool) (int64, error) {
	searchEnd := fileSize - trailingGarbageLen
	window := startxrefScanWindow
	start := searchEnd - int64(window)
	if start < 0 {
		start = 0
	}
	buf, err := readAt(rs, start, int(searchEnd-start))
	if err != nil {
		return 0, err
	}

	idx := bytes.LastIndex(buf, []byte("startxref"))
	kwLen := len("startxref")
	if idx == -1 && !strict {
		idx = bytes.LastIndex(buf, []byte("startref"))
		kwLen = len("startref")
	}
	if idx == -1 {
		return 0, pdferr.New(pdferr.NoXRef, "no startxref keyword found")
	}

	rest := bytes.TrimLeft(buf[idx+kwLen:], "\r\n \t")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, pdferr.New(pdferr.NoXRef, "startxref not followed by an offset")
	}
	offset, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, pdferr.Errorf(pdferr.NoXRef, "invalid startxref offset: %w", err)
	}
	return offset, nil
}
