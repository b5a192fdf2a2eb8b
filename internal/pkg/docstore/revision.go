package docstore

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NextRevision mints the revision following prev in the "<generation>-<hex>"
// shape. An empty prev yields a generation 1 revision.
func NextRevision(prev string) string {
	return strconv.Itoa(Generation(prev)+1) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Generation returns the numeric prefix of rev, or 0 when rev is empty or malformed.
func Generation(rev string) int {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
