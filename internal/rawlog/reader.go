package rawlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseLine splits "<unix_ts> <payload>" at the first space. A line with no
// space is a bare timestamp with an empty payload.
func ParseLine(line string) (Record, error) {
	stamp, payload, _ := strings.Cut(line, " ")
	ts, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp %q: %w", stamp, err)
	}
	return Record{Timestamp: ts, Payload: payload}, nil
}

// ReadRecords parses every line of r. Malformed lines are skipped and
// counted; blank lines are ignored. A read error stops parsing and is
// returned together with the records read so far.
func ReadRecords(r io.Reader) ([]Record, int, error) {
	br := bufio.NewReader(r)
	records := []Record{}
	skipped := 0

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			if line != "" {
				rec, perr := ParseLine(line)
				if perr != nil {
					skipped++
				} else {
					records = append(records, rec)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return records, skipped, nil
			}
			return records, skipped, fmt.Errorf("read records: %w", err)
		}
	}
}
