package service

import (
	"encoding/json"
	"os"

	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/services/collect/domain"
)

// defaultStatePath is the search checkpoint location
const defaultStatePath = "collection_state.json"

// loadState reads the checkpoint. Absence is (nil, nil); unreadable JSON is
// fatal because silently restarting would redo or skip work
func loadState(path string) (*domain.CollectionState, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "read checkpoint %s failed", path)
	}
	var st domain.CollectionState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "checkpoint %s is corrupt", path)
	}
	return &st, nil
}

// saveState writes the checkpoint atomically (write to .part then rename)
func saveState(path string, st *domain.CollectionState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "encode checkpoint failed")
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write checkpoint %s failed", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "rename checkpoint %s failed", path)
	}
	return nil
}
