// Package dirmerge drives the merge-file engine over pairs of archives
// found in two directories, pairing them by artifact identifier and
// enforcing the one-to-one precondition between them.
package dirmerge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aoapps/ztm/artifact"
	"github.com/aoapps/ztm/ztm"
)

// Config configures one directory-level merge run.
type Config struct {
	// OutputTimestamp is the reference UTC instant every entry of a
	// reproducible build must carry. Required.
	OutputTimestamp time.Time

	// BuildReproducible, when true, makes Pass A verify rather than patch.
	// See ztm.Config.BuildReproducible. The zero value is false.
	BuildReproducible bool

	// RequireLastBuild, when true, requires both directories to exist and
	// their identifier sets to be equal. The zero value is false.
	RequireLastBuild bool
}

// DuplicateIdentifierError reports that two archives in one directory
// parsed to the same Identifier.
type DuplicateIdentifierError struct {
	Directory string
	Filename1 string
	Filename2 string
	ID        artifact.Identifier
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf(
		"dirmerge: %s: %q and %q both parse to identifier %+v",
		e.Directory, e.Filename1, e.Filename2, e.ID,
	)
}

// NotOneToOneError reports that RequireLastBuild was true and the two
// directories' identifier sets differed.
type NotOneToOneError struct {
	LastBuildDir         string
	BuildDir             string
	MissingFromBuild     []artifact.Identifier // present in lastBuildDir, absent from buildDir
	MissingFromLastBuild []artifact.Identifier // present in buildDir, absent from lastBuildDir
}

func (e *NotOneToOneError) Error() string {
	return fmt.Sprintf(
		"dirmerge: %s and %s are not one-to-one: missing from build: %s; missing from last build: %s",
		e.LastBuildDir, e.BuildDir, formatIdentifiers(e.MissingFromBuild), formatIdentifiers(e.MissingFromLastBuild),
	)
}

func formatIdentifiers(ids []artifact.Identifier) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%+v", id)
	}
	return strings.Join(parts, ", ")
}

type archiveSet struct {
	byID map[artifact.Identifier]string // identifier -> filename
}

func scanDirectory(dir string) (archiveSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return archiveSet{}, err
	}

	set := archiveSet{byID: make(map[artifact.Identifier]string)}
	for _, entry := range entries {
		if entry.IsDir() || !artifact.Accept(entry.Name()) {
			continue
		}
		id, err := artifact.Parse(entry.Name())
		if err != nil {
			return archiveSet{}, err
		}
		if existing, dup := set.byID[id]; dup {
			return archiveSet{}, &DuplicateIdentifierError{Directory: dir, Filename1: existing, Filename2: entry.Name(), ID: id}
		}
		set.byID[id] = entry.Name()
	}
	return set, nil
}

func sortedIDs(set archiveSet) []artifact.Identifier {
	ids := make([]artifact.Identifier, 0, len(set.byID))
	for id := range set.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}

// Merge enumerates eligible archives in lastBuildDir and buildDir, pairs
// them by artifact.Identifier, and invokes ztm.MergeFile once per pair
// found in buildDir. A single wall-clock snapshot is used for the whole
// run so every pair's timestamp decisions are consistent with each other.
func Merge(ctx context.Context, cfg Config, lastBuildDir, buildDir string, log ztm.Logger) error {
	now := time.Now()

	buildSet, err := scanDirectory(buildDir)
	if err != nil {
		return err
	}

	lastSet, err := scanDirectory(lastBuildDir)
	if err != nil {
		if cfg.RequireLastBuild {
			return err
		}
		lastSet = archiveSet{byID: map[artifact.Identifier]string{}}
	}

	if cfg.RequireLastBuild {
		var missingFromBuild, missingFromLastBuild []artifact.Identifier
		for id := range lastSet.byID {
			if _, ok := buildSet.byID[id]; !ok {
				missingFromBuild = append(missingFromBuild, id)
			}
		}
		for id := range buildSet.byID {
			if _, ok := lastSet.byID[id]; !ok {
				missingFromLastBuild = append(missingFromLastBuild, id)
			}
		}
		if len(missingFromBuild) > 0 || len(missingFromLastBuild) > 0 {
			sort.Slice(missingFromBuild, func(i, j int) bool { return missingFromBuild[i].Compare(missingFromBuild[j]) < 0 })
			sort.Slice(missingFromLastBuild, func(i, j int) bool { return missingFromLastBuild[i].Compare(missingFromLastBuild[j]) < 0 })
			return &NotOneToOneError{
				LastBuildDir:         lastBuildDir,
				BuildDir:             buildDir,
				MissingFromBuild:     missingFromBuild,
				MissingFromLastBuild: missingFromLastBuild,
			}
		}
	}

	zcfg := ztm.Config{OutputTimestamp: cfg.OutputTimestamp, BuildReproducible: cfg.BuildReproducible, Now: now}

	for _, id := range sortedIDs(buildSet) {
		if err := ctx.Err(); err != nil {
			return err
		}

		buildName := buildSet.byID[id]
		buildPath := filepath.Join(buildDir, buildName)

		lastName, ok := lastSet.byID[id]
		if !ok {
			log.Warnf(func() string {
				return fmt.Sprintf("dirmerge: %s: no matching last-build archive for %+v", buildName, id)
			})
			continue
		}

		lastPath := filepath.Join(lastBuildDir, lastName)
		if err := ztm.MergeFile(ctx, zcfg, lastPath, buildPath, log); err != nil {
			return err
		}
	}
	return nil
}
