package moodle

import (
	"net/url"
	"sync"

	"github.com/PuerkitoBio/purell"
)

func canonicalUrl(link *url.URL) string {
	copied := *link
	return purell.NormalizeURL(
		&copied,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
}

// visitedSet is the set of urls a job has already processed, shared by all
// the course goroutines of the job.
type visitedSet struct {
	mutex sync.Mutex
	seen  map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: map[string]struct{}{}}
}

// Visit marks link as processed and reports whether this is the first time.
func (v *visitedSet) Visit(link *url.URL) bool {
	key := canonicalUrl(link)
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

func (v *visitedSet) Len() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.seen)
}
