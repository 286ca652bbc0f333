// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package pop3

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
)

// Entry is one line of a scan listing. ID is only meaningful within the
// session that produced it; servers renumber after deletions.
type Entry struct {
	ID   int
	Size int
}

// TotalSize returns the sum of the entries' sizes in octets.
func TotalSize(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Size
	}
	return total
}

// IsOK reports whether `line` is a positive status reply.
func IsOK(line string) bool {
	return strings.HasPrefix(line, "+OK")
}

// ParseListLine parses a "<id> <size>" scan listing line. Tokens past the
// second are ignored.
func ParseListLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Entry{}, false
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 1 {
		return Entry{}, false
	}
	size, err := strconv.Atoi(fields[1])
	if err != nil || size < 0 {
		return Entry{}, false
	}
	return Entry{ID: id, Size: size}, true
}

func parseListing(lines []string, log *zap.Logger) []Entry {
	entries := make([]Entry, 0, len(lines))
	for i, line := range lines {
		e, ok := ParseListLine(line)
		if !ok {
			log.Warn("Skipping bad listing line", zap.Int("index", i), zap.String("line", line))
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

var missingPhrases = []string{
	"no such message",
	"message deleted",
	"already deleted",
	"invalid message number",
}

// missingKind classifies a negative RETR/DELE reply.
func missingKind(reply string) error {
	lower := strings.ToLower(reply)
	for _, p := range missingPhrases {
		if strings.Contains(lower, p) {
			return mailerr.ErrNotFound
		}
	}
	return mailerr.ErrProtocol
}
