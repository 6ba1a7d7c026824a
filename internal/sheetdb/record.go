package sheetdb

import (
	"fmt"

	"github.com/banshee-data/itemsheet/internal/export"
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/pipeline"
	"github.com/banshee-data/itemsheet/internal/sheet/qualitygate"
)

// RecordResult stores one asset row per object of res in a single
// transaction. Objects the pipeline skipped are stored as skipped, assets
// the exporter could not write as failed. rep and gates may be nil.
func (db *DB) RecordResult(runID string, res *pipeline.Result, rep *export.Report, gates map[int]qualitygate.Report) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	failed := map[int]error{}
	if rep != nil {
		for _, pe := range rep.Failed {
			failed[pe.Index] = pe
		}
	}

	for _, a := range res.Assets {
		rec := newAssetRecord(a.Index, a.Box, AssetWritten)
		if rep != nil {
			rec.Path = rep.ByIndex[a.Index]
			if err, ok := failed[a.Index]; ok {
				rec.Status, rec.Reason = AssetFailed, err.Error()
			}
		}
		if g, ok := gates[a.Index]; ok {
			passed, detail := g.Passed, g.String()
			rec.GatePassed, rec.GateDetail = &passed, &detail
		}
		if err := insertAsset(tx, runID, rec); err != nil {
			return err
		}
	}
	for _, s := range res.Skipped {
		rec := newAssetRecord(s.Index, s.Box, AssetSkipped)
		rec.Reason = s.Err.Error()
		if err := insertAsset(tx, runID, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assets: %w", err)
	}
	return nil
}

func newAssetRecord(index int, b sheet.Box, status string) AssetRecord {
	return AssetRecord{Index: index, X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2, Area: b.Area, Status: status}
}
