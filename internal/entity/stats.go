package entity

// RecentBatch is the dashboard rollup for one recently seen batch.
// Status is "completed" iff every ledger row for the batch completed,
// else "mixed".
type RecentBatch struct {
	BatchID   string `json:"batchId"`
	FileCount int    `json:"fileCount"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// DashboardStats is derived from the full ledger on demand; it is never
// stored.
type DashboardStats struct {
	TotalBatches  int           `json:"totalBatches"`
	TotalScanned  int           `json:"totalScanned"`
	TotalFailed   int           `json:"totalFailed"`
	SuccessRate   float64       `json:"successRate"`
	AverageScore  float64       `json:"averageScore"`
	RecentBatches []RecentBatch `json:"recentBatches"`
}
