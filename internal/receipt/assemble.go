package receipt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gyeh/receiptgen/internal/sjis"
)

// EOF is the end-of-file marker some clearing systems expect after the last
// record.
const EOF = 0x1A

const lineEnd = "\r\n"

// Assemble joins records into CRLF-terminated lines and encodes the whole
// buffer as Shift_JIS.
func Assemble(records []Record, appendEOF bool) ([]byte, error) {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Line())
		sb.WriteString(lineEnd)
	}
	out, err := sjis.Encode(sb.String())
	if err != nil {
		return nil, fmt.Errorf("assemble %d records: %w", len(records), err)
	}
	if appendEOF {
		out = append(out, EOF)
	}
	return out, nil
}

// Parse decodes an assembled file back into records. A trailing EOF marker
// is ignored.
func Parse(data []byte) ([]Record, error) {
	data = bytes.TrimSuffix(data, []byte{EOF})
	text, err := sjis.Decode(data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	if !strings.HasSuffix(text, lineEnd) {
		return nil, fmt.Errorf("last line is not CRLF-terminated")
	}
	lines := strings.Split(strings.TrimSuffix(text, lineEnd), lineEnd)
	out := make([]Record, 0, len(lines))
	for i, ln := range lines {
		parts := strings.Split(ln, ",")
		if len(parts[0]) != 2 {
			return nil, fmt.Errorf("line %d: bad record id %q", i+1, parts[0])
		}
		out = append(out, Record{Type: RecordType(parts[0]), Fields: parts[1:]})
	}
	return out, nil
}
