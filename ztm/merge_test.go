package ztm

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aoapps/ztm/dostime"
	"github.com/aoapps/ztm/internal/zipfmt"
	"github.com/stretchr/testify/require"
)

type fixtureEntry struct {
	name    string
	content string
	method  uint16
	utcMs   int64
}

// setModTime packs ms directly into the header's legacy DOS time fields,
// bypassing FileHeader.Modified so archive/zip does not also append an
// extended-timestamp ("UT") extra field.
func setModTime(t *testing.T, fh *zip.FileHeader, utcMs int64) {
	t.Helper()
	b, err := (dostime.Codec{}).Pack(utcMs)
	require.NoError(t, err)
	fh.ModifiedTime = binary.LittleEndian.Uint16(b[0:2])
	fh.ModifiedDate = binary.LittleEndian.Uint16(b[2:4])
}

func writeFixture(t *testing.T, dir, name string, files []fixtureEntry) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		fh := &zip.FileHeader{Name: f.name, Method: f.method}
		setModTime(t, fh, f.utcMs)
		w, err := zw.CreateHeader(fh)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func entryTimes(t *testing.T, path string) map[string]int64 {
	t.Helper()
	r, err := zipfmt.Open(path)
	require.NoError(t, err)
	defer r.Close()

	entries, err := r.Entries()
	require.NoError(t, err)

	codec := dostime.Codec{}
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		out[e.Name] = codec.Unpack(e.TimeBytes)
	}
	return out
}

func ms(rfc3339 string) int64 {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		panic(err)
	}
	return dostime.RoundDownToQuantum(t.UnixMilli())
}

func TestReproducibleVerifySucceedsAndLeavesArchiveUntouched(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	output := ms("2023-09-07T01:38:34Z")
	path := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "a.txt", content: "a", method: zip.Store, utcMs: output},
		{name: "b.txt", content: "b", method: zip.Store, utcMs: output},
	})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	cfg := Config{OutputTimestamp: time.UnixMilli(output), BuildReproducible: true}
	err = VerifyReproducible(context.Background(), cfg, path, Logger{})
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestReproduciblePatchFixesOnlyMismatchedQuantum(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	output := ms("2023-09-07T01:38:34Z")
	sameQuantum := output + 1000 // +1s, same 2s quantum
	differentQuantum := ms("2023-09-07T01:39:00Z")
	path := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "a.txt", content: "a", method: zip.Store, utcMs: sameQuantum},
		{name: "b.txt", content: "b", method: zip.Store, utcMs: differentQuantum},
	})

	cfg := Config{OutputTimestamp: time.UnixMilli(output), BuildReproducible: false}
	err := VerifyReproducible(context.Background(), cfg, path, Logger{})
	require.NoError(t, err)

	times := entryTimes(t, path)
	require.Equal(t, output, times["a.txt"])
	require.Equal(t, output, times["b.txt"])
}

func TestMergeFileUnchangedContentPreservesOlderTime(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	lastTime := ms("2023-08-01T00:00:00Z")
	buildTime := ms("2023-09-01T00:00:00Z")

	lastPath := writeFixture(t, dir, "last.zip", []fixtureEntry{
		{name: "e.txt", content: "same content", method: zip.Store, utcMs: lastTime},
	})
	buildPath := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "e.txt", content: "same content", method: zip.Store, utcMs: buildTime},
	})

	cfg := Config{OutputTimestamp: time.UnixMilli(buildTime), BuildReproducible: true, Now: time.UnixMilli(buildTime)}
	err := MergeFile(context.Background(), cfg, lastPath, buildPath, Logger{})
	require.NoError(t, err)

	times := entryTimes(t, buildPath)
	require.Equal(t, lastTime, times["e.txt"])
}

func TestMergeFileChangedContentLastBuildNewerUsesNow(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	lastTime := ms("2023-09-10T00:00:00Z")
	buildTime := ms("2023-09-05T00:00:00Z")
	now := ms("2023-09-15T12:00:00Z")

	lastPath := writeFixture(t, dir, "last.zip", []fixtureEntry{
		{name: "e.txt", content: "old content", method: zip.Store, utcMs: lastTime},
	})
	buildPath := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "e.txt", content: "new content", method: zip.Store, utcMs: buildTime},
	})

	cfg := Config{OutputTimestamp: time.UnixMilli(buildTime), BuildReproducible: true, Now: time.UnixMilli(now)}
	err := MergeFile(context.Background(), cfg, lastPath, buildPath, Logger{})
	require.NoError(t, err)

	times := entryTimes(t, buildPath)
	require.Equal(t, now, times["e.txt"])
}

func TestMergeFileDirectoryChildAddedUpdatesDirectoryOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	output := ms("2023-09-05T00:00:00Z")
	now := ms("2023-09-15T12:00:00Z")

	lastDirTime := ms("2023-09-10T00:00:00Z")  // newer than output
	lastFileTime := ms("2023-08-01T00:00:00Z") // older than output

	lastPath := writeFixture(t, dir, "last.zip", []fixtureEntry{
		{name: "dir/", content: "", method: zip.Store, utcMs: lastDirTime},
		{name: "dir/file.txt", content: "same content", method: zip.Store, utcMs: lastFileTime},
	})
	// Every build-side entry already carries the reproducible output
	// timestamp, so Pass A is a no-op here; only Pass B's per-entry
	// decisions are under test.
	buildPath := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "dir/", content: "", method: zip.Store, utcMs: output},
		{name: "dir/file.txt", content: "same content", method: zip.Store, utcMs: output},
		{name: "dir/new.txt", content: "new", method: zip.Store, utcMs: output},
	})

	cfg := Config{OutputTimestamp: time.UnixMilli(output), BuildReproducible: true, Now: time.UnixMilli(now)}
	err := MergeFile(context.Background(), cfg, lastPath, buildPath, Logger{})
	require.NoError(t, err)

	times := entryTimes(t, buildPath)
	// dir/ gained a child relative to last build. Since its last-build time
	// is newer than its build time, the update takes the "now" branch of
	// the timestamp decision rather than keeping buildTime.
	require.Equal(t, now, times["dir/"])
	// dir/file.txt's own content is unchanged, so it keeps its older
	// last-build time regardless of its parent directory's decision.
	require.Equal(t, lastFileTime, times["dir/file.txt"])
	// dir/new.txt has no last-build counterpart; it is a new entry and
	// keeps its already-reproducible build time untouched.
	require.Equal(t, output, times["dir/new.txt"])
}

func TestMergeFileZeroEntriesSucceeds(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	lastPath := writeFixture(t, dir, "last.zip", nil)
	buildPath := writeFixture(t, dir, "build.zip", nil)

	cfg := Config{OutputTimestamp: time.Now(), BuildReproducible: true}
	err := MergeFile(context.Background(), cfg, lastPath, buildPath, Logger{})
	require.NoError(t, err)
}

func TestVerifyReproducibleExtendedTimestampIsFatal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fh := &zip.FileHeader{Name: "a.txt", Method: zip.Store, Modified: time.Now()}
	w, err := zw.CreateHeader(fh)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "build.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cfg := Config{OutputTimestamp: time.Now(), BuildReproducible: false}
	err = VerifyReproducible(context.Background(), cfg, path, Logger{})
	var extErr *ExtendedTimestampUnsupportedError
	require.ErrorAs(t, err, &extErr)
}

func TestVerifyReproducibleRejectsNoTimestampSentinel(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Leaving ModifiedTime/ModifiedDate at their zero value produces the
	// all-zero "no time" sentinel: day 0 of month 0 of 1980, a date DOS
	// packing never otherwise produces.
	path := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "a.txt", content: "x", method: zip.Store, utcMs: ms("2023-01-01T00:00:00Z")},
	})
	// Overwrite with the literal all-zero sentinel after construction, since
	// Codec.Pack can never produce it itself.
	zeroSentinelFixture(t, path)

	cfg := Config{OutputTimestamp: time.Now(), BuildReproducible: true}
	err := VerifyReproducible(context.Background(), cfg, path, Logger{})
	var noTimeErr *NoTimestampError
	require.ErrorAs(t, err, &noTimeErr)
}

// zeroSentinelFixture rewrites a.txt's local and central DOS time fields to
// all zero bytes, regardless of what its original fixture time packed to.
func zeroSentinelFixture(t *testing.T, path string) {
	t.Helper()
	r, err := zipfmt.Open(path)
	require.NoError(t, err)
	entries, err := r.Entries()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	e := entries[0]
	ps := zipfmt.PatchSet{
		{Offset: e.LocalTimeFieldOffset(), Expected: e.TimeBytes, Replacement: [4]byte{}},
		{Offset: e.CentralTimeFieldOffset(), Expected: e.TimeBytes, Replacement: [4]byte{}},
	}
	require.NoError(t, ps.Apply(path))
}

func TestMergeFileDuplicateNameInLastBuild(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	buildTime := ms("2023-09-01T00:00:00Z")

	buildPath := writeFixture(t, dir, "build.zip", []fixtureEntry{
		{name: "e.txt", content: "x", method: zip.Store, utcMs: buildTime},
	})

	lastPath := writeFixtureWithDuplicateName(t, dir, buildTime)

	cfg := Config{OutputTimestamp: time.UnixMilli(buildTime), BuildReproducible: true, Now: time.UnixMilli(buildTime)}
	err := MergeFile(context.Background(), cfg, lastPath, buildPath, Logger{})
	var dupErr *DuplicateNameError
	require.ErrorAs(t, err, &dupErr)
}

// writeFixtureWithDuplicateName writes an archive containing two distinct
// entries both named "e.txt". archive/zip only rejects reusing the same
// *FileHeader value twice, not reusing a name across two FileHeader values,
// so this is a legal (if unusual) archive to construct.
func writeFixtureWithDuplicateName(t *testing.T, dir string, utcMs int64) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := 0; i < 2; i++ {
		fh := &zip.FileHeader{Name: "e.txt", Method: zip.Store}
		setModTime(t, fh, utcMs)
		w, err := zw.CreateHeader(fh)
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "last.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}
