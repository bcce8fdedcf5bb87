package badger

import (
	"fmt"

	"github.com/suchitkumarchennuri/logiq/core"
)

// Key prefixes for different data types
const (
	logRecordPrefix = "logrec"
	logRecordIDSeq  = "logrecseq"
	metaDimKey      = "meta:dim"
)

// makeLogRecordKey generates a key for a log record by ID.
func makeLogRecordKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", logRecordPrefix, id))
}
