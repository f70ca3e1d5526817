package models

// Stats summarizes the upload ledger.
type Stats struct {
	TotalDocuments  int64          `json:"total_documents"`
	TotalChunks     int64          `json:"total_chunks"`
	TotalPages      int64          `json:"total_pages"`
	ByStatus        map[string]int `json:"by_status"`
	AvgProcessingMS float64        `json:"avg_processing_ms"`
}
