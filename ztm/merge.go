// Package ztm preserves meaningful per-entry timestamps inside AAR/JAR/WAR/ZIP
// archives across successive builds, so downstream consumers see a change
// timestamp only when an entry's content actually changed, while new
// content still gets the project's declared reproducible-build timestamp.
package ztm

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aoapps/ztm/dostime"
	"github.com/aoapps/ztm/internal/entrycmp"
	"github.com/aoapps/ztm/internal/zipfmt"
)

// MergeFile runs both passes of the merge-file driver against one archive
// pair: Pass A makes buildArchive reproducible (verifying or patching it
// against cfg.OutputTimestamp), then Pass B compares buildArchive's entries
// against lastBuildArchive's and patches timestamps so unchanged content
// keeps its prior time, changed content gets a fresh one, and entries with
// no last-build counterpart keep the time Pass A left them with.
func MergeFile(ctx context.Context, cfg Config, lastBuildArchive, buildArchive string, log Logger) error {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	nowRounded := dostime.RoundDownToQuantum(now.UnixMilli())
	codec := dostime.Codec{}

	if err := passA(ctx, codec, cfg, buildArchive, log); err != nil {
		return err
	}
	return passB(ctx, codec, nowRounded, lastBuildArchive, buildArchive, log)
}

// VerifyReproducible runs Pass A only: it makes buildArchive reproducible
// (verifying or patching it against cfg.OutputTimestamp) without comparing
// it against any last-build archive. dirmerge does not call it: a build
// archive with no last-build counterpart only gets a warning there.
func VerifyReproducible(ctx context.Context, cfg Config, buildArchive string, log Logger) error {
	return passA(ctx, dostime.Codec{}, cfg, buildArchive, log)
}

func passA(ctx context.Context, codec dostime.Codec, cfg Config, buildArchive string, log Logger) error {
	outputMs := cfg.OutputTimestamp.UnixMilli()
	outputRounded := dostime.RoundDownToQuantum(outputMs)

	entries, err := readEntries(buildArchive)
	if err != nil {
		return err
	}

	var patches zipfmt.PatchSet
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.ExtendedTimestamp() {
			return &ExtendedTimestampUnsupportedError{Path: buildArchive, Name: e.Name}
		}
		if e.HasNoTimestamp() {
			return &NoTimestampError{Path: buildArchive, Name: e.Name}
		}

		entryTime := dostime.RoundDownToQuantum(codec.Unpack(e.TimeBytes))
		if cfg.BuildReproducible {
			if entryTime != outputRounded {
				return &NotReproducibleError{Path: buildArchive, Name: e.Name, Entry: entryTime, Output: outputRounded}
			}
			continue
		}

		if entryTime == outputRounded {
			continue
		}
		replacement, err := codec.Pack(outputMs)
		if err != nil {
			return fmt.Errorf("ztm: %s: entry %q: %w", buildArchive, e.Name, err)
		}
		log.Infof(func() string {
			return fmt.Sprintf("ztm: %s: patching entry %q to reproducible output timestamp", buildArchive, e.Name)
		})
		patches = append(patches,
			zipfmt.Patch{Offset: e.LocalTimeFieldOffset(), Expected: e.TimeBytes, Replacement: replacement},
			zipfmt.Patch{Offset: e.CentralTimeFieldOffset(), Expected: e.TimeBytes, Replacement: replacement},
		)
	}

	if len(patches) == 0 {
		return nil
	}
	return patches.Apply(buildArchive)
}

func passB(ctx context.Context, codec dostime.Codec, nowRounded int64, lastBuildArchive, buildArchive string, log Logger) error {
	buildReader, err := zipfmt.Open(buildArchive)
	if err != nil {
		return err
	}
	defer buildReader.Close() //nolint:errcheck // read-only; error surfaces via later operations if it matters

	lastReader, err := zipfmt.Open(lastBuildArchive)
	if err != nil {
		return err
	}
	defer lastReader.Close() //nolint:errcheck // same

	buildEntries, err := buildReader.Entries()
	if err != nil {
		return err
	}
	lastEntries, err := lastReader.Entries()
	if err != nil {
		return err
	}

	lastByName := make(map[string][]*zipfmt.Entry, len(lastEntries))
	for _, e := range lastEntries {
		lastByName[e.Name] = append(lastByName[e.Name], e)
	}

	cmp := &entrycmp.Comparator{
		BuildReader:  buildReader,
		BuildEntries: buildEntries,
		LastReader:   lastReader,
		LastEntries:  lastEntries,
	}

	var patches zipfmt.PatchSet
	for _, build := range buildEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		matches := lastByName[build.Name]
		if len(matches) == 0 {
			log.Infof(func() string {
				return fmt.Sprintf("ztm: %s: new entry %q", buildArchive, build.Name)
			})
			continue
		}
		if len(matches) > 1 {
			return &DuplicateNameError{Path: lastBuildArchive, Name: build.Name}
		}
		last := matches[0]

		if build.IsDir != last.IsDir {
			return fmt.Errorf("ztm: %s: entry %q is a directory in one archive and a file in the other", buildArchive, build.Name)
		}

		buildTime := codec.Unpack(build.TimeBytes)
		lastTime := codec.Unpack(last.TimeBytes)
		if buildTime > nowRounded {
			log.Warnf(func() string {
				return fmt.Sprintf("ztm: %s: entry %q time is in the future relative to now", buildArchive, build.Name)
			})
		}
		if lastTime > nowRounded {
			log.Warnf(func() string {
				return fmt.Sprintf("ztm: %s: entry %q time is in the future relative to now", lastBuildArchive, build.Name)
			})
		}

		result, err := cmp.Compare(build, last)
		if err != nil {
			return err
		}

		var expectedTime int64
		if result.Updated {
			if lastTime < buildTime {
				expectedTime = buildTime
			} else {
				expectedTime = nowRounded
			}
		} else {
			expectedTime = lastTime
		}

		log.Debugf(func() string {
			return fmt.Sprintf("ztm: %s: entry %q: updated=%t reason=%s expectedTime=%d", buildArchive, build.Name, result.Updated, result.Reason, expectedTime)
		})

		if result.Updated && !build.IsDir {
			log.Debugf(func() string {
				return fmt.Sprintf("ztm: %s: entry %q content digests: build=%s last=%s", buildArchive, build.Name, digestOrUnknown(buildReader, build), digestOrUnknown(lastReader, last))
			})
		}

		if buildTime == expectedTime {
			continue
		}

		if !bytes.Equal(build.RawName, build.CentralRawName) {
			return &CentralDirectoryMismatchError{Path: buildArchive, Name: build.Name}
		}

		replacement, err := codec.Pack(expectedTime)
		if err != nil {
			return fmt.Errorf("ztm: %s: entry %q: %w", buildArchive, build.Name, err)
		}
		patches = append(patches,
			zipfmt.Patch{Offset: build.LocalTimeFieldOffset(), Expected: build.TimeBytes, Replacement: replacement},
			zipfmt.Patch{Offset: build.CentralTimeFieldOffset(), Expected: build.TimeBytes, Replacement: replacement},
		)
	}

	if err := buildReader.Close(); err != nil {
		return err
	}
	if err := lastReader.Close(); err != nil {
		return err
	}

	if len(patches) == 0 {
		return nil
	}
	return patches.Apply(buildArchive)
}

// digestOrUnknown computes a diagnostic content digest for a log line.
// Digest failures never fail the merge; they only degrade the log message.
func digestOrUnknown(r *zipfmt.Reader, e *zipfmt.Entry) string {
	stream, err := r.DecompressedStream(e)
	if err != nil {
		return "unknown"
	}
	defer stream.Close() //nolint:errcheck // diagnostic read, nothing to recover

	d, err := entrycmp.Digest(stream)
	if err != nil {
		return "unknown"
	}
	return d.String()
}

func readEntries(archive string) ([]*zipfmt.Entry, error) {
	r, err := zipfmt.Open(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // read-only

	return r.Entries()
}
