package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	perr "ghcollector/internal/platform/errors"
)

// defaultCheckpointPath is the enrichment checkpoint location
const defaultCheckpointPath = "enrich_checkpoint.txt"

// loadCheckpoint reads the next batch index. Absence is (0, false, nil);
// unparseable content is fatal for the same reason as a corrupt search state
func loadCheckpoint(path string) (int, bool, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, perr.Wrapf(err, perr.ErrorCodeUnknown, "read checkpoint %s failed", path)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || n < 0 {
		return 0, false, perr.Newf(perr.ErrorCodeInvalidArgument, "checkpoint %s is corrupt", path)
	}
	return n, true, nil
}

// saveCheckpoint writes the next batch index atomically
func saveCheckpoint(path string, next int) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(next)+"\n"), 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write checkpoint %s failed", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "rename checkpoint %s failed", path)
	}
	return nil
}

// removeCheckpoint deletes the checkpoint on clean completion
func removeCheckpoint(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "remove checkpoint %s failed", path)
	}
	return nil
}

// appendFailedIDs appends one repository id per line to the dated failure file
func appendFailedIDs(path string, ids []int64) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "open failure file %s failed", path)
	}
	defer f.Close()
	for _, id := range ids {
		if _, err := fmt.Fprintf(f, "%d\n", id); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "write failure file %s failed", path)
		}
	}
	return nil
}

// loadFailedIDs reads a failure file back for a targeted retry
func loadFailedIDs(path string) ([]int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read failure file %s failed", path)
	}
	var out []int64
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "failure file %s has a bad id %q", path, line)
		}
		out = append(out, id)
	}
	return out, nil
}
