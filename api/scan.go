package api

// MetadataScanCursor continues a full ascending scan of the metadata
// table (select_all_metadata). ScanStart starts the scan; any other value
// (including the zero value) resumes after SourceID.
type MetadataScanCursor struct {
	SourceID uint64
	AtStart  bool
}

// ScanStart is the cursor that begins a metadata full scan.
var ScanStart = MetadataScanCursor{AtStart: true}

// EdgeScanCursor continues a full (source_id ASC, destination_id ASC)
// scan of the edges table (select_all), used by bulk-copy-style readers.
type EdgeScanCursor struct {
	SourceID      uint64
	DestinationID uint64
	AtStart       bool
}

// EdgeScanStart is the cursor that begins a full edge scan.
var EdgeScanStart = EdgeScanCursor{AtStart: true}

// MetadataPage is the result of one select_all_metadata call.
type MetadataPage struct {
	Rows []Metadata
	Next MetadataScanCursor
	Done bool
}

// EdgePage is the result of one select_all call.
type EdgePage struct {
	Rows []Edge
	Next EdgeScanCursor
	Done bool
}
