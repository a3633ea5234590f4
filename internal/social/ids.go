package social

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const postIDPrefix = "POST_"

// Clock abstracts time retrieval so feed ordering is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique post id generation.
type IDGenerator interface {
	New() string
}

// SequenceGenerator produces prefix+n with n starting at 1. It is lock free;
// ids are monotonic in the order New is called.
type SequenceGenerator struct {
	prefix  string
	counter atomic.Uint64
}

func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

func (g *SequenceGenerator) New() string {
	return g.prefix + strconv.FormatUint(g.counter.Add(1), 10)
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

// NewIDGenerator maps a configured scheme name to a generator.
func NewIDGenerator(scheme string) (IDGenerator, error) {
	switch scheme {
	case "", "sequence":
		return NewSequenceGenerator(postIDPrefix), nil
	case "uuid":
		return UUIDGenerator{}, nil
	default:
		return nil, invalidArgument("unknown post id scheme %q", scheme)
	}
}

// compareIDs orders ids so that "POST_9" < "POST_10": when both ids share a
// prefix followed by digits the numeric suffix decides, otherwise plain
// string order.
func compareIDs(a, b string) int {
	pa, na, okA := splitNumericSuffix(a)
	pb, nb, okB := splitNumericSuffix(b)
	if okA && okB && pa == pb {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func splitNumericSuffix(id string) (string, uint64, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return id, 0, false
	}
	n, err := strconv.ParseUint(id[i:], 10, 64)
	if err != nil {
		return id, 0, false
	}
	return id[:i], n, true
}
