package entrycmp

import (
	"strings"

	"github.com/aoapps/ztm/internal/zipfmt"
)

// metaInfDir and sitemapIndexName name the one documented carve-out: a downstream
// sitemap generator adds META-INF/sitemap-index.xml after ZTM runs, so its
// absence from the build side must not, by itself, mark META-INF/ updated.
//
// This carve-out applies to removal only. An *added* sitemap-index.xml on
// the build side still counts as a directory content change; it is never
// symmetrized.
const metaInfDir = "META-INF/"
const sitemapIndexName = "sitemap-index.xml"

// immediateChildren collects the set of immediate child name fragments of
// dirName among entries. An entry counts as an immediate child only when
// its fragment (the part of its name after dirName, with the fragment's
// own trailing "/" stripped if it is itself a directory entry) contains no
// further "/": entries nested two or more levels below dirName are
// excluded entirely, not rolled up into their enclosing subdirectory.
func immediateChildren(entries []*zipfmt.Entry, dirName string) (map[string]struct{}, error) {
	children := make(map[string]struct{})
	seen := make(map[string]struct{})

	for _, e := range entries {
		if e.Name == dirName || !strings.HasPrefix(e.Name, dirName) {
			continue
		}
		if _, dup := seen[e.Name]; dup {
			return nil, &DuplicateChildError{Directory: dirName, Name: e.Name}
		}
		seen[e.Name] = struct{}{}

		fragment := e.Name[len(dirName):]
		if fragment == "" {
			continue
		}
		if strings.IndexByte(strings.TrimSuffix(fragment, "/"), '/') >= 0 {
			continue
		}
		children[fragment] = struct{}{}
	}
	return children, nil
}

func setDiff(a, b map[string]struct{}) map[string]struct{} {
	diff := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			diff[k] = struct{}{}
		}
	}
	return diff
}

func compareDirectories(buildEntries, lastEntries []*zipfmt.Entry, build, last *zipfmt.Entry) (Result, error) {
	buildChildren, err := immediateChildren(buildEntries, build.Name)
	if err != nil {
		return Result{}, err
	}
	lastChildren, err := immediateChildren(lastEntries, last.Name)
	if err != nil {
		return Result{}, err
	}

	missingFromBuild := setDiff(lastChildren, buildChildren)
	addedInBuild := setDiff(buildChildren, lastChildren)

	if build.Name == metaInfDir {
		if _, missing := missingFromBuild[sitemapIndexName]; missing && len(missingFromBuild) == 1 {
			delete(missingFromBuild, sitemapIndexName)
		}
	}

	return Result{
		Updated: len(missingFromBuild) > 0 || len(addedInBuild) > 0,
		Reason:  ReasonDirectoryChildren,
	}, nil
}
