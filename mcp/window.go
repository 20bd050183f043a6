package mcp

import (
	"bytes"
	"fmt"

	"github.com/viant/omnicm/contents"
)

// span is a half-open byte range [start, end) of a text document.
type span struct {
	start int
	end   int
}

func (s span) of(data []byte) []byte {
	return data[s.start:s.end]
}

// byteSpan selects LengthBytes from OffsetBytes; zero length runs to the end.
func byteSpan(data []byte, r BytesRange) (span, error) {
	if r.OffsetBytes < 0 || r.LengthBytes < 0 {
		return span{}, fmt.Errorf("%w: negative byte range", contents.ErrInvalidContent)
	}
	start := int(min(r.OffsetBytes, int64(len(data))))
	end := len(data)
	if r.LengthBytes > 0 {
		end = start + min(r.LengthBytes, len(data)-start)
	}
	return span{start: start, end: end}, nil
}

// lineSpan selects LineCount lines from 1-based StartLine, without the final newline.
func lineSpan(data []byte, r LineRange) span {
	if r.StartLine <= 0 && r.LineCount <= 0 {
		return span{end: len(data)}
	}
	start := lineOffset(data, max(r.StartLine-1, 0))
	if r.LineCount <= 0 {
		return span{start: start, end: len(data)}
	}
	end := len(data)
	if next := lineOffset(data[start:], r.LineCount); start+next < len(data) {
		end = start + next - 1
	}
	return span{start: start, end: end}
}

// lineOffset returns the offset of line n (0-based), or len(data) when there is no such line.
func lineOffset(data []byte, n int) int {
	offset := 0
	for ; n > 0; n-- {
		idx := bytes.IndexByte(data[offset:], '\n')
		if idx < 0 || offset+idx+1 >= len(data) {
			return len(data)
		}
		offset += idx + 1
	}
	return offset
}

// headSpan keeps the first maxLines lines, or the first maxBytes bytes when maxLines is unset.
func headSpan(data []byte, maxBytes, maxLines int) span {
	if maxLines <= 0 {
		if maxBytes > 0 && len(data) > maxBytes {
			return span{end: maxBytes}
		}
		return span{end: len(data)}
	}
	offset := 0
	for i := 0; i < maxLines; i++ {
		idx := bytes.IndexByte(data[offset:], '\n')
		if idx < 0 {
			return span{end: len(data)}
		}
		if i == maxLines-1 {
			return span{end: offset + idx}
		}
		offset += idx + 1
	}
	return span{end: len(data)}
}

// tailSpan keeps the last maxLines lines, or the last maxBytes bytes when maxLines is unset.
func tailSpan(data []byte, maxBytes, maxLines int) span {
	if maxLines <= 0 {
		if maxBytes > 0 && len(data) > maxBytes {
			return span{start: len(data) - maxBytes, end: len(data)}
		}
		return span{end: len(data)}
	}
	end := len(data)
	for i := 0; i < maxLines; i++ {
		idx := bytes.LastIndexByte(data[:end], '\n')
		if idx < 0 {
			return span{end: len(data)}
		}
		end = idx
	}
	return span{start: end + 1, end: len(data)}
}
