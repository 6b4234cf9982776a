package constants

// AllowedExtensions lists the sheet image formats accepted at upload.
var AllowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// MasterLedgerName is the single append-only results file spanning all
// batches ever processed.
const MasterLedgerName = "Results_Master.csv"
