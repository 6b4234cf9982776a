package entity

import (
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
)

// GradeResult is what the grading engine reports for one sheet image. On an
// engine failure only Status, FileName and Error are meaningful.
type GradeResult struct {
	Status         constants.FileStatus `json:"status"`
	FileName       string               `json:"fileName"`
	RollNumber     string               `json:"rollNumber"`
	TotalQuestions int                  `json:"totalQuestions"`
	Correct        int                  `json:"correct"`
	Incorrect      int                  `json:"incorrect"`
	Unmarked       int                  `json:"unmarked"`
	Responses      Responses            `json:"responses"`
	Score          float64              `json:"score"`
	MaxScore       float64              `json:"maxScore"`
	Percentage     float64              `json:"percentage"`
	Error          string               `json:"error"`
}

// ResultRecord is one durable ledger row per processed file. Written exactly
// once by the worker and immutable thereafter; corrections require a new row.
type ResultRecord struct {
	BatchID    string               `json:"batchId"`
	FileName   string               `json:"fileName"`
	RollNumber string               `json:"rollNumber"`
	Score      float64              `json:"score"`
	MaxScore   float64              `json:"maxScore"`
	Percentage float64              `json:"percentage"`
	Responses  Responses            `json:"responses"`
	Status     constants.FileStatus `json:"status"`
	CreatedAt  time.Time            `json:"createdAt"`
	Error      string               `json:"error"`
}

// RecordFromResult builds the ledger row for one engine outcome, normalizing
// the response map into its canonical order.
func RecordFromResult(batchID string, res *GradeResult, at time.Time) ResultRecord {
	return ResultRecord{
		BatchID:    batchID,
		FileName:   res.FileName,
		RollNumber: res.RollNumber,
		Score:      res.Score,
		MaxScore:   res.MaxScore,
		Percentage: res.Percentage,
		Responses:  NewResponses(res.Responses.Map()),
		Status:     res.Status,
		CreatedAt:  at,
		Error:      res.Error,
	}
}
