package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRange      = errors.New("malformed range header")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// ByteRange is a resolved, inclusive byte span of a file of known size.
type ByteRange struct {
	First int64
	Last  int64
}

func (b ByteRange) Length() int64 { return b.Last - b.First + 1 }

// ContentRange formats the Content-Range value for a file of size bytes.
func (b ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.First, b.Last, size)
}

// ParseByteRange resolves a Range header against a file of size bytes. ok is
// false when no range was requested. Only the first range of a multi-range
// request is honoured; media elements never send more than one.
func ParseByteRange(header string, size int64) (br ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}
	set, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, ErrMalformedRange
	}
	set, _, _ = strings.Cut(set, ",")
	first, last, found := strings.Cut(strings.TrimSpace(set), "-")
	if !found {
		return ByteRange{}, false, ErrMalformedRange
	}

	if first == "" {
		// Suffix form: the final n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false, ErrMalformedRange
		}
		if size == 0 {
			return ByteRange{}, false, ErrRangeNotSatisfiable
		}
		return ByteRange{First: max(0, size-n), Last: size - 1}, true, nil
	}

	br.First, err = strconv.ParseInt(first, 10, 64)
	if err != nil || br.First < 0 {
		return ByteRange{}, false, ErrMalformedRange
	}
	br.Last = size - 1
	if last != "" {
		br.Last, err = strconv.ParseInt(last, 10, 64)
		if err != nil || br.Last < br.First {
			return ByteRange{}, false, ErrMalformedRange
		}
		br.Last = min(br.Last, size-1)
	}
	if br.First >= size {
		return ByteRange{}, false, ErrRangeNotSatisfiable
	}
	return br, true, nil
}
