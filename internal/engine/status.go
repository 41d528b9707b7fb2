package engine

// SyncStatus classifies a record against its file.
type SyncStatus int

const (
	// NotExported means no source contains a file for the record.
	NotExported SyncStatus = iota
	// NotImported means a file exists but the live record does not.
	NotImported
	// InSync means the live record exports to the file's content.
	InSync
	// OutOfSync means the live record and the file differ.
	OutOfSync
)

func (s SyncStatus) String() string {
	switch s {
	case NotExported:
		return "not_exported"
	case NotImported:
		return "not_imported"
	case InSync:
		return "in_sync"
	case OutOfSync:
		return "out_of_sync"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its string form.
func (s SyncStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
