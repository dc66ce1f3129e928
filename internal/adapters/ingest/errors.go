package ingest

import "errors"

// Sentinel errors for register ingestion.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrDuplicatePNR  = errors.New("duplicate pnr")
	ErrInvalidRow    = errors.New("invalid row")
	ErrReadInput     = errors.New("failed to read register")
	ErrWriteOutput   = errors.New("failed to write register")
)
