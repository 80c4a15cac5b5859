package mysql

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const (
	nullField      = `\N`
	datetimeLayout = "2006-01-02 15:04:05.999999"
)

// appendField writes v in the LOAD DATA text format: tab separated fields,
// newline terminated lines, backslash escapes and \N for NULL.
func appendField(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString(nullField)
	case string:
		appendEscaped(buf, []byte(val))
	case []byte:
		if val == nil {
			buf.WriteString(nullField)
			return
		}
		appendEscaped(buf, val)
	case bool:
		if val {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case float32:
		buf.WriteString(strconv.FormatFloat(float64(val), 'f', -1, 32))
	case time.Time:
		buf.WriteString(val.Format(datetimeLayout))
	default:
		appendEscaped(buf, []byte(fmt.Sprint(val)))
	}
}

func appendEscaped(buf *bytes.Buffer, b []byte) {
	for _, c := range b {
		switch c {
		case '\\':
			buf.WriteString(`\\`)
		case '\t':
			buf.WriteString(`\t`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case 0:
			buf.WriteString(`\0`)
		default:
			buf.WriteByte(c)
		}
	}
}

// appendRow writes one line.
func appendRow(buf *bytes.Buffer, row []any) {
	for i, v := range row {
		if i > 0 {
			buf.WriteByte('\t')
		}
		appendField(buf, v)
	}
	buf.WriteByte('\n')
}
